package objstore

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(serverURL, bucket string, httpClient *http.Client) *Client {
	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
	return NewClient(serverURL, bucket, tokens, httpClient, slog.New(slog.DiscardHandler))
}

func TestClient_Download(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("chunk text body"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sync_chunks", server.Client())

	text, err := client.Download(context.Background(), "chunks/g1/file-a/chunk-1.txt")

	require.NoError(t, err)
	assert.Equal(t, "chunk text body", text)
	assert.Equal(t, "/storage/v1/b/sync_chunks/o/chunks%2Fg1%2Ffile-a%2Fchunk-1.txt", gotPath)
	assert.Equal(t, "alt=media", gotQuery)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestClient_Download_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "b", server.Client())

	_, err := client.Download(context.Background(), "missing.txt")

	assert.Error(t, err)
}

func TestClient_List_Paginates(t *testing.T) {
	var tokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, r.URL.Query().Get("pageToken"))
		assert.Equal(t, "chunks/g1/", r.URL.Query().Get("prefix"))
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{
				"items": [{"name": "chunks/g1/f/a.txt"}, {"name": "chunks/g1/f/b.txt"}],
				"nextPageToken": "page-2"
			}`))
			return
		}
		_, _ = w.Write([]byte(`{"items": [{"name": "chunks/g1/f/c.txt"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "b", server.Client())

	names, err := client.List(context.Background(), "chunks/g1/")

	require.NoError(t, err)
	assert.Equal(t, []string{"chunks/g1/f/a.txt", "chunks/g1/f/b.txt", "chunks/g1/f/c.txt"}, names)
	assert.Equal(t, []string{"", "page-2"}, tokens)
}

func TestClient_List_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "b", server.Client())

	names, err := client.List(context.Background(), "chunks/empty/")

	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestClient_Upload(t *testing.T) {
	var gotPath, gotName, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotName = r.URL.Query().Get("name")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, "media", r.URL.Query().Get("uploadType"))
		_, _ = w.Write([]byte(`{"name": "groups/g1/notes.pdf"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "studysync", server.Client())

	err := client.Upload(context.Background(), "groups/g1/notes.pdf", []byte("pdf bytes"), "application/pdf")

	require.NoError(t, err)
	assert.Equal(t, "/upload/storage/v1/b/studysync/o", gotPath)
	assert.Equal(t, "groups/g1/notes.pdf", gotName)
	assert.Equal(t, "application/pdf", gotContentType)
	assert.Equal(t, []byte("pdf bytes"), gotBody)
}

func TestClient_Upload_DefaultContentType(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "b", server.Client())

	require.NoError(t, client.Upload(context.Background(), "p", []byte("x"), ""))
	assert.Equal(t, "application/octet-stream", gotContentType)
}
