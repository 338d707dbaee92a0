package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schulwerk/vplan-engine/feed"
)

func TestResourceName(t *testing.T) {
	day := time.Date(2024, 11, 25, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "VplanKl20241125.xml", feed.ResourceName(day))
}

func TestClient_FetchSendsBasicAuthAndPath(t *testing.T) {
	day := time.Date(2024, 11, 25, 0, 0, 0, 0, time.UTC)

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		user, pass, ok := r.BasicAuth()
		if !ok || user != "schule" || pass != "geheim" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("<vp/>"))
	}))
	defer srv.Close()

	client := feed.NewClient(srv.URL+"/", "schule", "geheim")
	raw, err := client.Fetch(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, "<vp/>", string(raw))
	assert.Equal(t, "/VplanKl20241125.xml", gotPath)
}

func TestClient_Fetch404IsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := feed.NewClient(srv.URL, "", "")
	_, err := client.Fetch(context.Background(), time.Now())
	assert.True(t, errors.Is(err, feed.ErrNotFound))
}

func TestClient_Fetch5xxIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := feed.NewClient(srv.URL, "", "")
	_, err := client.Fetch(context.Background(), time.Now())

	var transient *feed.TransientError
	require.True(t, errors.As(err, &transient))
	assert.Equal(t, http.StatusBadGateway, transient.StatusCode)
}

func TestClient_FetchNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := feed.NewClient(srv.URL, "", "")
	_, err := client.Fetch(context.Background(), time.Now())

	var transient *feed.TransientError
	require.True(t, errors.As(err, &transient))
	assert.Equal(t, 0, transient.StatusCode)
}

func TestClient_FetchAuthFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := feed.NewClient(srv.URL, "wrong", "wrong")
	_, err := client.Fetch(context.Background(), time.Now())
	require.Error(t, err)
	assert.False(t, errors.Is(err, feed.ErrNotFound))

	var transient *feed.TransientError
	assert.False(t, errors.As(err, &transient))
}
