package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpad/api/internal/logging"
	"docpad/api/internal/upload"
)

func newTestCLI(t *testing.T, handler http.HandlerFunc, stdin string) (*cli, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	out := &bytes.Buffer{}
	return &cli{
		api:    newAPIClient(srv.URL, "secret-token"),
		in:     strings.NewReader(stdin),
		out:    out,
		prompt: io.Discard,
		log:    logging.Nop(),
	}, out
}

func viewJSON(lines int, class string, toggle bool) map[string]any {
	ops := make([]any, 0, lines)
	for i := 1; i <= lines; i++ {
		ops = append(ops, map[string]any{"insert": fmt.Sprintf("line %d\n", i)})
	}
	label := ""
	if toggle {
		label = "+ See more"
	}
	return map[string]any{
		"document": map[string]any{"id": "doc_1", "title": "Notes"},
		"view": map[string]any{
			"id":          "view_1",
			"class":       class,
			"showToggle":  toggle,
			"toggleLabel": label,
		},
		"value": map[string]any{"ops": ops},
	}
}

func TestShowClipsLastLineViews(t *testing.T) {
	c, out := newTestCLI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/documents/doc_1/views", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("showAll"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(viewJSON(15, "last-line", true))
	}, "")

	require.NoError(t, c.run(context.Background(), []string{"show", "doc_1"}))
	text := out.String()
	assert.Contains(t, text, "# Notes")
	assert.Contains(t, text, "line 10\n")
	assert.NotContains(t, text, "line 11")
	assert.Contains(t, text, "+ See more  (docpad toggle view_1)")
}

func TestToggleShowsEverything(t *testing.T) {
	c, out := newTestCLI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/views/view_1/toggle", r.URL.Path)
		payload := viewJSON(15, "show-all", true)
		payload["view"].(map[string]any)["toggleLabel"] = "- Show less"
		_ = json.NewEncoder(w).Encode(payload)
	}, "")

	require.NoError(t, c.run(context.Background(), []string{"toggle", "view_1"}))
	assert.Contains(t, out.String(), "line 15\n")
	assert.Contains(t, out.String(), "- Show less")
}

func TestInsertFormulaPromptsOnTerminal(t *testing.T) {
	c, out := newTestCLI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/documents/doc_1/embeds", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "formula", body["kind"])
		assert.Equal(t, float64(3), body["index"])
		assert.Equal(t, "x^2", body["value"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"inserted": true, "kind": "formula", "embedValue": "x^2",
			"commit": map[string]any{"hash": "abc123"},
		})
	}, "x^2\n")

	require.NoError(t, c.run(context.Background(), []string{"insert", "-index", "3", "doc_1", "formula"}))
	assert.Equal(t, "inserted formula x^2 at 3\ncommit abc123\n", out.String())
}

func TestInsertCancelledPromptSendsNothing(t *testing.T) {
	var calls atomic.Int32
	c, out := newTestCLI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, "\n")

	require.NoError(t, c.run(context.Background(), []string{"insert", "doc_1", "graph"}))
	assert.Equal(t, "cancelled\n", out.String())
	assert.Zero(t, calls.Load())
}

func TestInsertImageUploadsThenEmbedsByName(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	path := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(path, png, 0o600))

	var uploaded atomic.Bool
	c, out := newTestCLI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/files/upload":
			assert.Equal(t, "doc_1", r.URL.Query().Get("documentId"))
			file, header, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, png, data)
			assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
			uploaded.Store(true)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(upload.NewResponse("stored.png"))
		case "/api/documents/doc_1/embeds":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "image", body["kind"])
			assert.Equal(t, "stored.png", body["value"])
			_ = json.NewEncoder(w).Encode(map[string]any{"inserted": true, "kind": "image", "embedValue": "/api/files/stored.png"})
		default:
			http.NotFound(w, r)
		}
	}, "")

	require.NoError(t, c.run(context.Background(), []string{"insert", "-file", path, "doc_1", "image"}))
	assert.True(t, uploaded.Load())
	assert.Equal(t, "inserted image /api/files/stored.png at 0\n", out.String())
}

func TestAPIErrorsSurface(t *testing.T) {
	c, _ := newTestCLI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "FORBIDDEN", "error": "Forbidden"})
	}, "")

	err := c.run(context.Background(), []string{"toggle", "view_1"})
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
}

func TestUsage(t *testing.T) {
	c, _ := newTestCLI(t, func(http.ResponseWriter, *http.Request) {}, "")
	assert.ErrorIs(t, c.run(context.Background(), nil), errUsage)
	assert.ErrorIs(t, c.run(context.Background(), []string{"publish"}), errUsage)
	assert.ErrorIs(t, c.run(context.Background(), []string{"show"}), errUsage)
	assert.Error(t, c.run(context.Background(), []string{"insert", "doc_1", "video"}))
}
