package notion

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocksetup/pkg/contracts/domain"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Options{
		BaseURL: server.URL,
		Token:   "secret-token",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSearchPaginatesAndMapsResults(t *testing.T) {
	var cursors []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/search", r.URL.Path)
		require.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		require.Equal(t, DefaultAPIVersion, r.Header.Get("Notion-Version"))

		var req struct {
			StartCursor string `json:"start_cursor"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		cursors = append(cursors, req.StartCursor)

		if req.StartCursor == "" {
			w.Write([]byte(`{
				"results": [
					{"object": "database", "id": "a1a1a1a1-a1a1-a1a1-a1a1-a1a1a1a1a1a1",
					 "title": [{"plain_text": "Stock "}, {"plain_text": "Analyses"}]},
					{"object": "user", "id": "ignored"}
				],
				"has_more": true,
				"next_cursor": "page-2"
			}`))
			return
		}
		w.Write([]byte(`{
			"results": [
				{"object": "page", "id": "c3c3c3c3-c3c3-c3c3-c3c3-c3c3c3c3c3c3",
				 "url": "https://www.notion.so/Stock-Intelligence",
				 "properties": {"Name": {"type": "title", "title": [{"plain_text": "Stock Intelligence"}]}}}
			],
			"has_more": false,
			"next_cursor": null
		}`))
	})

	client := testClient(t, handler)
	results, err := client.Search(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, []string{"", "page-2"}, cursors)
	require.Len(t, results, 2)

	assert.Equal(t, domain.KindDatabase, results[0].Kind)
	assert.Equal(t, "Stock Analyses", results[0].Title)

	assert.Equal(t, domain.KindPage, results[1].Kind)
	assert.Equal(t, "Stock Intelligence", results[1].Title)
	assert.Equal(t, "https://www.notion.so/Stock-Intelligence", results[1].Metadata["url"])
}

func TestSearchSurfacesAPIError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status": 401, "code": "unauthorized", "message": "API token is invalid."}`))
	})

	client := testClient(t, handler)
	_, err := client.Search(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name       string
		kind       domain.ResourceKind
		dbStatus   int
		pageStatus int
		want       domain.LookupStatus
	}{
		{
			name:     "database found",
			kind:     domain.KindDatabase,
			dbStatus: http.StatusOK,
			want:     domain.LookupFound,
		},
		{
			name:       "database id is actually a page",
			kind:       domain.KindDatabase,
			dbStatus:   http.StatusNotFound,
			pageStatus: http.StatusOK,
			want:       domain.LookupWrongKind,
		},
		{
			name:       "not found anywhere",
			kind:       domain.KindPage,
			dbStatus:   http.StatusNotFound,
			pageStatus: http.StatusNotFound,
			want:       domain.LookupNotFound,
		},
		{
			name:       "malformed id treated as not found",
			kind:       domain.KindPage,
			dbStatus:   http.StatusBadRequest,
			pageStatus: http.StatusBadRequest,
			want:       domain.LookupNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if strings.HasPrefix(r.URL.Path, "/v1/databases/") {
					w.WriteHeader(tt.dbStatus)
				} else {
					w.WriteHeader(tt.pageStatus)
				}
				w.Write([]byte(`{}`))
			})

			client := testClient(t, handler)
			status, err := client.Lookup(context.Background(), "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestLookupUnexpectedStatusIsError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client := testClient(t, handler)
	_, err := client.Lookup(context.Background(), "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", domain.KindDatabase)
	require.Error(t, err)
}

func TestResolveUser(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/users/me", r.URL.Path)
		// ResolveUser authenticates with the per-request token, not the
		// client's own.
		require.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"object": "user", "id": "bot-user-1", "type": "bot"}`))
	})

	client := testClient(t, handler)
	userID, err := client.ResolveUser(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, "bot-user-1", userID)
}

func TestResolveUserRejectsBadToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status": 401, "code": "unauthorized"}`))
	})

	client := testClient(t, handler)
	_, err := client.ResolveUser(context.Background(), "bad-token")
	require.Error(t, err)
}
