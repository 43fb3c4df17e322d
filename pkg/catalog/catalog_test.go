package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticListSortsCopy(t *testing.T) {
	src := Static{"000108", "000003", "000027"}
	ids, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"000003", "000027", "000108"}, ids)
	assert.Equal(t, Static{"000108", "000003", "000027"}, src, "input must not be reordered in place")
}

func TestClientWalksAllPages(t *testing.T) {
	var requests atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		pageNum := r.URL.Query().Get("page")
		var body map[string]any
		switch pageNum {
		case "":
			next := srv.URL + "/api/dandisets/?page=2"
			body = map[string]any{
				"next": next,
				"results": []map[string]string{
					{"identifier": "000027"},
					{"identifier": "000003"},
				},
			}
		case "2":
			body = map[string]any{
				"next": nil,
				"results": []map[string]string{
					{"identifier": "000108"},
				},
			}
		default:
			http.Error(w, "no such page", http.StatusNotFound)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL + "/api", PageSize: 2})
	ids, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"000003", "000027", "000108"}, ids, "identifiers come back sorted")
	assert.Equal(t, int32(2), requests.Load())
}

func TestClientSkipsBlankIdentifiers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"next": null, "results": [{"identifier": ""}, {"identifier": "000003"}]}`)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL})
	ids, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"000003"}, ids)
}

func TestClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL})
	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClientThrottleHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"next": null, "results": []}`)
	}))
	defer srv.Close()

	// A tiny rate with a canceled context must fail fast inside the
	// limiter wait rather than hanging.
	c := NewClient(ClientOptions{BaseURL: srv.URL, RequestsPerSecond: 0.001})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.List(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
