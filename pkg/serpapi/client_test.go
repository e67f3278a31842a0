package serpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/review-scout/internal/resilience"
)

const testKey = "sk-serp-secret"

func newTestClient(srv *httptest.Server, attempts int) Client {
	return NewClient(testKey,
		WithBaseURL(srv.URL),
		WithLocale("es", "us"),
		WithRetry(resilience.RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond}),
	)
}

func TestMapsSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "google_maps", q.Get("engine"))
		assert.Equal(t, "search", q.Get("type"))
		assert.Equal(t, "bar in Madrid", q.Get("q"))
		assert.Equal(t, "20", q.Get("start"))
		assert.Equal(t, "es", q.Get("hl"))
		assert.Equal(t, "us", q.Get("gl"))
		assert.Equal(t, testKey, q.Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"local_results": [{"place_id": "ChIJ1", "title": "Bar Pepe", "reviews": 210}],
			"serpapi_pagination": {"next": "https://serpapi.com/search.json?start=40"}
		}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv, 1).MapsSearch(context.Background(), MapsSearchRequest{Query: "bar in Madrid", Start: 20})
	require.NoError(t, err)
	require.Len(t, resp.LocalResults, 1)
	assert.Contains(t, string(resp.LocalResults[0]), "Bar Pepe")
	assert.True(t, resp.HasNext())
}

func TestMapsSearch_SinglePlaceResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"place_results": {"place_id": "ChIJ9", "title": "Only One"}}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv, 1).MapsSearch(context.Background(), MapsSearchRequest{Query: "Only One"})
	require.NoError(t, err)
	require.Len(t, resp.LocalResults, 1)
	assert.Contains(t, string(resp.LocalResults[0]), "ChIJ9")
	assert.False(t, resp.HasNext())
}

func TestMapsSearch_NoResultsIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": "Google hasn't returned any results for this query."}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv, 1).MapsSearch(context.Background(), MapsSearchRequest{Query: "nothing"})
	require.NoError(t, err)
	assert.Empty(t, resp.LocalResults)
}

func TestMapsReviews_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "google_maps_reviews", q.Get("engine"))
		assert.Equal(t, "0x1:0x2", q.Get("data_id"))
		assert.Equal(t, "ratingLow", q.Get("sort_by"))
		assert.Equal(t, "tok-1", q.Get("next_page_token"))

		_, _ = w.Write([]byte(`{
			"search_metadata": {"status": "Success", "google_maps_url": "https://maps.google.com/?cid=1"},
			"place_info": {"title": "Bar Pepe"},
			"reviews": [{"rating": 1, "snippet": "awful"}, {"rating": 2, "snippet": "bad"}],
			"serpapi_pagination": {"next_page_token": "tok-2"}
		}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv, 1).MapsReviews(context.Background(), MapsReviewsRequest{DataID: "0x1:0x2", NextPageToken: "tok-1"})
	require.NoError(t, err)
	assert.Len(t, resp.Reviews, 2)
	assert.Equal(t, "tok-2", resp.Pagination.NextPageToken)
	assert.Equal(t, "https://maps.google.com/?cid=1", resp.PlaceURL())
}

func TestClient_ErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "Invalid API key ` + testKey + `"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 3).MapsSearch(context.Background(), MapsSearchRequest{Query: "x"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testKey)
	assert.Contains(t, err.Error(), "api_key=REDACTED")
	assert.Contains(t, err.Error(), "401")
}

func TestClient_APIErrorBodyWith200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": "Your account has run out of searches."}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 1).MapsReviews(context.Background(), MapsReviewsRequest{DataID: "d"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run out of searches")
	assert.NotContains(t, err.Error(), testKey)
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"reviews": []}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv, 2).MapsReviews(context.Background(), MapsReviewsRequest{DataID: "d"})
	require.NoError(t, err)
	assert.Empty(t, resp.Reviews)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryPermanentStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 3).MapsReviews(context.Background(), MapsReviewsRequest{DataID: "d"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_TransportErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv, 1).MapsSearch(context.Background(), MapsSearchRequest{Query: "x"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testKey)
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 1).MapsSearch(context.Background(), MapsSearchRequest{Query: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}
