package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Goog-FieldMask"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "coffee shops in Seattle", body["textQuery"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"places": [{
				"id": "place-1",
				"displayName": {"text": "Roast House"},
				"types": ["cafe", "coffee_shop"],
				"rating": 4.6,
				"userRatingCount": 211,
				"websiteUri": "https://roasthouse.example",
				"nationalPhoneNumber": "(206) 555-0101",
				"formattedAddress": "100 Pike St, Seattle, WA 98101, USA",
				"addressComponents": [
					{"longText": "Seattle", "shortText": "Seattle", "types": ["locality"]}
				],
				"reviews": [{"publishTime": "2026-01-15T10:00:00Z"}]
			}],
			"nextPageToken": "tok-2"
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))

	resp, err := client.TextSearch(context.Background(), TextSearchRequest{Query: "coffee shops in Seattle"})
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)

	p := resp.Places[0]
	assert.Equal(t, "place-1", p.ID)
	assert.Equal(t, "Roast House", p.DisplayName.Text)
	assert.InDelta(t, 4.6, p.Rating, 0.001)
	assert.Equal(t, "https://roasthouse.example", p.WebsiteURI)
	assert.Equal(t, "tok-2", resp.NextPageToken)
	require.Len(t, p.Reviews, 1)
	assert.Equal(t, 2026, p.Reviews[0].PublishTime.Year())
}

func TestTextSearch_PageTokenForwarded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok-2", body["pageToken"])
		_, _ = w.Write([]byte(`{"places": []}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{Query: "q", PageToken: "tok-2"})
	require.NoError(t, err)
	assert.Empty(t, resp.Places)
	assert.Empty(t, resp.NextPageToken)
}

func TestTextSearch_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "key invalid"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.TextSearch(context.Background(), TextSearchRequest{Query: "q"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Auth())
}

func TestTextSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient("key", WithBaseURL(srv.URL))
	_, err := client.TextSearch(context.Background(), TextSearchRequest{Query: "q"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, apiErr.Auth())
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}
