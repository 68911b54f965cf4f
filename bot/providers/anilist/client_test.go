package anilist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bocchi", req.Variables["search"])

		_, _ = w.Write([]byte(`{"data":{"Page":{"media":[
			{"id":1,"title":{"romaji":"Bocchi the Rock!","english":""},"episodes":12,"format":"TV","averageScore":87,"siteUrl":"https://anilist.co/anime/1"},
			{"id":2,"title":{"romaji":"X","english":"Bocchi Movie"},"episodes":1,"format":"MOVIE","averageScore":70,"siteUrl":"https://anilist.co/anime/2"}
		]}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	media, err := c.Search(context.Background(), "bocchi", 5)
	require.NoError(t, err)
	require.Len(t, media, 2)

	assert.Equal(t, "Bocchi the Rock!", media[0].Title, "romaji used when english missing")
	assert.Equal(t, "Bocchi Movie", media[1].Title)
	assert.Equal(t, 12, media[0].Episodes)
}

func TestSearchSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"rate limited"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Search(context.Background(), "x", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSearchRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Search(context.Background(), "x", 5)
	assert.Error(t, err)
}
