package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpad/api/internal/auth"
	"docpad/api/internal/content"
	"docpad/api/internal/embed"
	"docpad/api/internal/preview"
	"docpad/api/internal/render"
	"docpad/api/internal/store"
	"docpad/api/internal/upload"
)

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload), rr.Body.String())
	return payload
}

func multipartFile(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func issueTestToken(t *testing.T, secret, name, role string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(secret), auth.NewClaims(name, role, time.Hour))
	require.NoError(t, err)
	return token
}

func TestHealthEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(t, newFakeStore()), "*")

	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decodeResponse(t, rr)["ok"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestReadyEndpoint(t *testing.T) {
	fs := newFakeStore()
	server := NewHTTPServer(newTestService(t, fs), "*")

	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ready", decodeResponse(t, rr)["status"])

	fs.pingFn = func(context.Context) error { return errors.New("connection refused") }
	rr = doJSON(t, server.Handler(), http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	payload := decodeResponse(t, rr)
	assert.Equal(t, "not_ready", payload["status"])
	database := payload["checks"].(map[string]any)["database"].(map[string]any)
	assert.Equal(t, "connection refused", database["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(t, newFakeStore()), "*")
	handler := server.Handler()

	doJSON(t, handler, http.MethodGet, "/api/documents/doc_1", "", nil)
	rr := doJSON(t, handler, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `docpad_http_requests_total{method="GET",route="/api/documents/{id}",status="Not Found"} 1`)
}

func TestDocumentLifecycleOverHTTP(t *testing.T) {
	server := NewHTTPServer(newTestService(t, newFakeStore()), "*")
	handler := server.Handler()

	rr := doJSON(t, handler, http.MethodPost, "/api/documents", "", map[string]any{"title": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeResponse(t, rr)["code"])

	rr = doJSON(t, handler, http.MethodPost, "/api/documents", "", map[string]any{"title": "Notes", "value": "{oops"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "MALFORMED_DOCUMENT", decodeResponse(t, rr)["code"])

	rr = doJSON(t, handler, http.MethodPost, "/api/documents", "", map[string]any{"title": "Notes"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := decodeResponse(t, rr)["document"].(map[string]any)["id"].(string)

	rr = doJSON(t, handler, http.MethodPut, "/api/documents/"+id, "", map[string]any{
		"content": "<p>hello</p>",
		"delta":   map[string]any{"ops": []any{map[string]any{"insert": "hello\n"}}},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	saved := decodeResponse(t, rr)
	assert.Equal(t, `{"content":"<p>hello</p>","delta":{"ops":[{"insert":"hello\n"}]}}`, saved["value"])

	rr = doJSON(t, handler, http.MethodGet, "/api/documents/"+id+"?mode=read", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	read := decodeResponse(t, rr)
	assert.Equal(t, "read", read["mode"])
	assert.Equal(t, map[string]any{"ops": []any{map[string]any{"insert": "hello\n"}}}, read["value"])

	rr = doJSON(t, handler, http.MethodGet, "/api/documents/"+id, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	edit := decodeResponse(t, rr)
	assert.Equal(t, "edit", edit["mode"])
	assert.Equal(t, "<p>hello</p>", edit["value"])

	rr = doJSON(t, handler, http.MethodGet, "/api/documents/"+id+"/history", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeResponse(t, rr)["commits"], 2)

	rr = doJSON(t, handler, http.MethodGet, "/api/documents", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeResponse(t, rr)["documents"], 1)

	rr = doJSON(t, handler, http.MethodDelete, "/api/documents/"+id, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, handler, http.MethodGet, "/api/documents/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decodeResponse(t, rr)["code"])
}

func TestRoleDecidesReadOnlyMode(t *testing.T) {
	const secret = "test-secret"
	svc := newTestService(t, newFakeStore())
	svc.cfg.TokenSecret = secret
	handler := NewHTTPServer(svc, "*").Handler()
	id := createDoc(t, svc, "Notes", "")

	rr := doJSON(t, handler, http.MethodGet, "/api/documents/"+id, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, handler, http.MethodGet, "/api/documents/"+id, "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	viewer := issueTestToken(t, secret, "Vic", "viewer")
	rr = doJSON(t, handler, http.MethodGet, "/api/documents/"+id, viewer, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "read", decodeResponse(t, rr)["mode"])

	rr = doJSON(t, handler, http.MethodGet, "/api/documents/"+id+"?mode=edit", viewer, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doJSON(t, handler, http.MethodPut, "/api/documents/"+id, viewer, map[string]any{"value": ""})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doJSON(t, handler, http.MethodPost, "/api/documents/"+id+"/embeds", viewer, map[string]any{"kind": "formula", "value": "x"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	editor := issueTestToken(t, secret, "Eve", "editor")
	rr = doJSON(t, handler, http.MethodGet, "/api/documents/"+id, editor, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "edit", decodeResponse(t, rr)["mode"])

	rr = doJSON(t, handler, http.MethodDelete, "/api/documents/"+id, editor, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestSessionLogin(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	handler := NewHTTPServer(svc, "*").Handler()

	rr := doJSON(t, handler, http.MethodPost, "/api/session/login", "", map[string]any{"name": "Avery"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "AUTH_DISABLED", decodeResponse(t, rr)["code"])

	svc.cfg.TokenSecret = "test-secret"
	rr = doJSON(t, handler, http.MethodPost, "/api/session/login", "", map[string]any{"name": "Avery", "role": "editor"})
	require.Equal(t, http.StatusOK, rr.Code)
	token := decodeResponse(t, rr)["token"].(string)

	rr = doJSON(t, handler, http.MethodGet, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	session := decodeResponse(t, rr)
	assert.Equal(t, true, session["authenticated"])
	assert.Equal(t, "Avery", session["userName"])
	assert.Equal(t, false, session["readOnly"])
}

func TestEmbedRoutes(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	handler := NewHTTPServer(svc, "*").Handler()
	id := createDoc(t, svc, "Math", mustEncode(t, "<p>ab</p>", content.TextOp("ab\n", nil)))

	rr := doJSON(t, handler, http.MethodPost, "/api/documents/"+id+"/embeds", "", map[string]any{"kind": "formula", "index": 2, "value": ""})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decodeResponse(t, rr)["inserted"])

	rr = doJSON(t, handler, http.MethodPost, "/api/documents/"+id+"/embeds", "", map[string]any{"kind": "graph", "index": 2, "value": "sin(x)"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	inserted := decodeResponse(t, rr)
	assert.Equal(t, true, inserted["inserted"])
	assert.Equal(t, "sin(x)", inserted["embedValue"])

	rr = doJSON(t, handler, http.MethodPost, "/api/documents/"+id+"/embeds", "", map[string]any{"kind": "video", "value": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "UNKNOWN_EMBED_KIND", decodeResponse(t, rr)["code"])
}

func TestImageEmbedAndFileRoutes(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	handler := NewHTTPServer(svc, "*").Handler()
	id := createDoc(t, svc, "Pictures", "")

	// No declared type: the server sniffs the PNG signature.
	body, contentType := multipartFile(t, "chart.png", "", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/documents/"+id+"/embeds/image?index=0", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	url := decodeResponse(t, rr)["embedValue"].(string)

	rr = doJSON(t, handler, http.MethodGet, url, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rr.Body.Bytes())

	body, contentType = multipartFile(t, "notes.txt", "text/plain", []byte("hello"))
	req = httptest.NewRequest(http.MethodPost, "/api/documents/"+id+"/embeds/image?index=0", body)
	req.Header.Set("Content-Type", contentType)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/documents/"+id+"/embeds/image?index=first", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, handler, http.MethodGet, "/api/files/missing.png", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "FILE_NOT_FOUND", decodeResponse(t, rr)["code"])

	rr = doJSON(t, handler, http.MethodGet, "/api/documents/"+id+"/files", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeResponse(t, rr)["files"], 1)
}

func TestUploadRoute(t *testing.T) {
	fs := newFakeStore()
	fs.insertFileAssetFn = func(context.Context, store.FileAsset) error { return errors.New("ledger down") }
	svc := newTestService(t, fs)
	handler := NewHTTPServer(svc, "*").Handler()

	body, contentType := multipartFile(t, "logo.gif", "image/gif", []byte("GIF89a"))
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var res upload.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	name, err := res.FirstName()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".gif"))

	big := bytes.Repeat([]byte("a"), 3<<20)
	body, contentType = multipartFile(t, "huge.png", "image/png", big)
	req = httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestViewRoutes(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	handler := NewHTTPServer(svc, "*").Handler()
	id := createDoc(t, svc, "Long", longValue(t, 100))

	rr := doJSON(t, handler, http.MethodPost, "/api/documents/"+id+"/views", "", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	view := decodeResponse(t, rr)["view"].(map[string]any)
	assert.Equal(t, "last-line", view["class"])
	assert.Equal(t, "+ See more", view["toggleLabel"])
	viewID := view["id"].(string)

	rr = doJSON(t, handler, http.MethodPost, "/api/views/"+viewID+"/toggle", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "show-all", decodeResponse(t, rr)["view"].(map[string]any)["class"])

	rr = doJSON(t, handler, http.MethodGet, "/api/views/"+viewID+"/page", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "- Show less")

	rr = doJSON(t, handler, http.MethodDelete, "/api/views/"+viewID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, handler, http.MethodGet, "/api/views/"+viewID, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "VIEW_NOT_FOUND", decodeResponse(t, rr)["code"])

	rr = doJSON(t, handler, http.MethodPost, "/api/documents/"+id+"/views?showAll=true", "", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, false, decodeResponse(t, rr)["view"].(map[string]any)["showToggle"])
}

func TestExportRoute(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	handler := NewHTTPServer(svc, "*").Handler()
	id := createDoc(t, svc, "Release Notes", mustEncode(t, "", content.TextOp("Shipped\n", nil)))

	rr := doJSON(t, handler, http.MethodGet, "/api/documents/"+id+"/export?format=html", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "Release-Notes.html")
	assert.Contains(t, rr.Body.String(), "<p>Shipped</p>")

	rr = doJSON(t, handler, http.MethodGet, "/api/documents/"+id+"/export?format=odt", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", decodeResponse(t, rr)["code"])
}

func TestSearchWithoutBackendReturnsEmpty(t *testing.T) {
	handler := NewHTTPServer(newTestService(t, newFakeStore()), "*").Handler()

	rr := doJSON(t, handler, http.MethodGet, "/api/search?q=hello", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	payload := decodeResponse(t, rr)
	assert.Equal(t, "hello", payload["query"])
	assert.Empty(t, payload["results"])
}

func TestUnknownRoute(t *testing.T) {
	handler := NewHTTPServer(newTestService(t, newFakeStore()), "*").Handler()
	rr := doJSON(t, handler, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLiveDocumentStream(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	id := createDoc(t, svc, "Live", "")
	ts := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/documents/" + id + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snapshot liveMessage
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, liveSnapshot, snapshot.Type)
	assert.Eventually(t, func() bool { return svc.live.count(id) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"content": "<p>typed</p>",
		"delta":   map[string]any{"ops": []any{map[string]any{"insert": "typed\n"}}},
	}))
	var saved liveMessage
	require.NoError(t, conn.ReadJSON(&saved))
	assert.Equal(t, liveSaved, saved.Type)
	assert.Equal(t, `{"content":"<p>typed</p>","delta":{"ops":[{"insert":"typed\n"}]}}`, saved.Value)
	assert.NotEmpty(t, saved.Commit)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "change"}))
	var failed liveMessage
	require.NoError(t, conn.ReadJSON(&failed))
	assert.Equal(t, liveError, failed.Type)
	assert.Equal(t, "VALIDATION_ERROR", failed.Code)
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/api/health":                         "/api/health",
		"/api/documents":                      "/api/documents",
		"/api/documents/doc_1":                "/api/documents/{id}",
		"/api/documents/doc_1/versions/abc12": "/api/documents/{id}/versions/{hash}",
		"/api/documents/doc_1/embeds/image":   "/api/documents/{id}/embeds/image",
		"/api/views/view_1/toggle":            "/api/views/{id}/toggle",
		"/api/files/upload":                   "/api/files/upload",
		"/api/files/abc.png":                  "/api/files/{name}",
		"/":                                   "/",
	}
	for path, want := range tests {
		assert.Equal(t, want, routeLabel(path), path)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{validationError("x"), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{fmt.Errorf("get: %w", context.Canceled), http.StatusInternalServerError, "SERVER_ERROR"},
		{auth.ErrExpiredToken, http.StatusUnauthorized, "UNAUTHORIZED"},
		{fmt.Errorf("decode: %w", content.ErrMalformedDocument), http.StatusUnprocessableEntity, "MALFORMED_DOCUMENT"},
		{fmt.Errorf("%w: %q", embed.ErrUnsupportedImageType, "text/plain"), http.StatusUnsupportedMediaType, "UNSUPPORTED_IMAGE_TYPE"},
		{&embed.UploadFailureError{Err: errors.New("503")}, http.StatusBadGateway, "UPLOAD_FAILED"},
		{embed.ErrCancelled, http.StatusConflict, "DOCUMENT_BUSY"},
		{preview.ErrViewNotFound, http.StatusNotFound, "VIEW_NOT_FOUND"},
		{render.ErrPDFDependencyMissing, http.StatusNotImplemented, "EXPORT_UNAVAILABLE"},
		{errors.Join(render.ErrContentUnavailable, errors.New("bad hash")), http.StatusUnprocessableEntity, "CONTENT_UNAVAILABLE"},
	}
	for _, tt := range tests {
		status, code, _, _ := mapError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
