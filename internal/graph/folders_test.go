package graph_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnguyen/mailbridge/internal/graph"
)

// fakeFolderTree serves a mail folder hierarchy the way Graph does:
// the root collection at /users/{user}/mailFolders and child listings
// at /users/{user}/mailFolders/{id}/childFolders.
type fakeFolderTree struct {
	// children maps a folder ID ("" for the root) to its child folders.
	children map[string][]map[string]string
	requests int
}

func (f *fakeFolderTree) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests++

		parentID := ""
		if trimmed, ok := strings.CutPrefix(r.URL.Path, "/users/sam@example.com/mailFolders"); ok {
			if rest, ok := strings.CutSuffix(trimmed, "/childFolders"); ok {
				parentID = strings.TrimPrefix(rest, "/")
			}
		}

		folders, ok := f.children[parentID]
		if !ok {
			folders = nil
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"value": folders,
		}))
	})
}

func newFolderTree() *fakeFolderTree {
	return &fakeFolderTree{
		children: map[string][]map[string]string{
			"": {
				{"id": "f-inbox", "displayName": "Inbox"},
				{"id": "f-sent", "displayName": "Sent Items"},
			},
			"f-inbox": {
				{"id": "f-jobs", "displayName": "2024 Jobs"},
			},
			"f-jobs": {
				{"id": "f-nova", "displayName": "Nova"},
			},
			"f-nova": {
				{"id": "f-2411001", "displayName": "2411001"},
			},
		},
	}
}

func newTestClient(srv *httptest.Server) *graph.Client {
	return graph.NewClient(srv.Client(), srv.URL, "sam@example.com", 50)
}

func TestResolveFolderPath(t *testing.T) {
	tree := newFolderTree()
	srv := httptest.NewServer(tree.handler(t))
	defer srv.Close()

	client := newTestClient(srv)

	id, err := client.ResolveFolderPath(
		context.Background(),
		[]string{"Inbox", "2024 Jobs", "Nova", "2411001"},
	)
	require.NoError(t, err)
	assert.Equal(t, "f-2411001", id)
	assert.Equal(t, 4, tree.requests)
}

func TestResolveFolderPathMissingSegment(t *testing.T) {
	tree := newFolderTree()
	srv := httptest.NewServer(tree.handler(t))
	defer srv.Close()

	client := newTestClient(srv)

	_, err := client.ResolveFolderPath(
		context.Background(),
		[]string{"Inbox", "2025 Jobs", "Nova", "2411001"},
	)
	require.ErrorIs(t, err, graph.ErrNotFound)
	assert.Contains(t, err.Error(), "2025 Jobs")

	// The walk stops at the miss: one lookup for Inbox, one for the
	// missing segment, nothing past it.
	assert.Equal(t, 2, tree.requests)
}

func TestResolveFolderPathExactMatchOnly(t *testing.T) {
	tree := newFolderTree()
	srv := httptest.NewServer(tree.handler(t))
	defer srv.Close()

	client := newTestClient(srv)

	_, err := client.ResolveFolderPath(context.Background(), []string{"inbox"})
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestResolveFolderPathPagedListing(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"value":[{"id":"f-late","displayName":"Late Folder"}]}`)
			return
		}
		fmt.Fprintf(w,
			`{"value":[{"id":"f-1","displayName":"Other"}],"@odata.nextLink":%q}`,
			srv.URL+r.URL.Path+"?page=2",
		)
	}))
	defer srv.Close()

	client := newTestClient(srv)

	id, err := client.ResolveFolderPath(context.Background(), []string{"Late Folder"})
	require.NoError(t, err)
	assert.Equal(t, "f-late", id)
}

func TestResolveFolderPathEmpty(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := newTestClient(srv)

	_, err := client.ResolveFolderPath(context.Background(), nil)
	assert.Error(t, err)
}
