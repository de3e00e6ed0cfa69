package app

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"docpad/api/internal/auth"
	"docpad/api/internal/content"
	"docpad/api/internal/editor"
	"docpad/api/internal/embed"
	"docpad/api/internal/preview"
	"docpad/api/internal/rbac"
	"docpad/api/internal/render"
	"docpad/api/internal/search"
	"docpad/api/internal/upload"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		upgrader:   newUpgrader(corsOrigin),
		log:        service.log.With().Str("component", "http").Logger(),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) forbid(w http.ResponseWriter, session Session, action rbac.Action) {
	s.log.Info().Str("user", session.UserName).Str("role", string(session.Role)).Str("action", string(action)).Msg("forbidden")
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func (s *HTTPServer) allow(w http.ResponseWriter, session Session, action rbac.Action) bool {
	if s.service.Can(session.Role, action) {
		return true
	}
	s.forbid(w, session, action)
	return false
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		s.service.Metrics().Handler().ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		if !s.service.AuthEnabled() {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "authEnabled": false, "userName": anonymousName, "role": rbac.RoleEditor})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), bearerToken(r))
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "authEnabled": true, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"authEnabled":   true,
			"userName":      session.UserName,
			"role":          session.Role,
			"readOnly":      rbac.ReadOnly(session.Role),
			"expiresAt":     session.ExpiresAt.Unix(),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body struct {
			Name string `json:"name"`
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Login(r.Context(), body.Name, body.Role)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":     session.Token,
			"userName":  session.UserName,
			"role":      session.Role,
			"readOnly":  rbac.ReadOnly(session.Role),
			"expiresAt": session.ExpiresAt.Unix(),
		})
		return
	}

	parts := splitPath(r.URL.Path)

	// Image tags and view pages cannot carry a bearer token. Stored names and
	// view ids are unguessable.
	if r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "api" && parts[1] == "files" && parts[2] != "upload" {
		s.handleFile(w, r, parts[2])
		return
	}
	if r.Method == http.MethodGet && len(parts) == 4 && parts[0] == "api" && parts[1] == "views" && parts[3] == "page" {
		page, err := s.service.ViewPage(r.Context(), parts[2])
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, page)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.URL.Path == "/api/documents" {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListDocuments(r.Context())
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"documents": items})
		case http.MethodPost:
			if !s.allow(w, session, rbac.ActionWrite) {
				return
			}
			var body struct {
				Title string `json:"title"`
				Value string `json:"value"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateDocument(r.Context(), body.Title, body.Value, session.UserName)
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		writeJSON(w, http.StatusOK, s.service.Search(search.Query{
			Text:      strings.TrimSpace(query.Get("q")),
			EmbedKind: strings.TrimSpace(query.Get("embed")),
			Limit:     limit,
			Offset:    offset,
		}))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/files/upload" {
		if !s.allow(w, session, rbac.ActionUpload) {
			return
		}
		file, cleanup, err := s.readUpload(w, r)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		defer cleanup()
		res, err := s.service.UploadFile(r.Context(), file, r.URL.Query().Get("documentId"), session.UserName)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "views" {
		s.handleViews(w, r, parts[2], parts[3:])
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "documents" {
		s.handleDocuments(w, r, session, parts[2], parts)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
		"views":    map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	// Views degrade to re-measuring, so a cache outage does not fail readiness.
	if err := s.service.PingViews(ctx); err != nil {
		checks["views"] = map[string]any{
			"status": "degraded",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, session Session, documentID string, parts []string) {
	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			readOnly := rbac.ReadOnly(session.Role)
			switch r.URL.Query().Get("mode") {
			case "read":
				readOnly = true
			case "edit":
				if !s.allow(w, session, rbac.ActionWrite) {
					return
				}
				readOnly = false
			}
			payload, err := s.service.GetDocument(r.Context(), documentID, readOnly)
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodPut:
			if !s.allow(w, session, rbac.ActionWrite) {
				return
			}
			var body SaveInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.SaveDocument(r.Context(), documentID, body, session.UserName)
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodDelete:
			if !s.allow(w, session, rbac.ActionAdmin) {
				return
			}
			if err := s.service.DeleteDocument(r.Context(), documentID); err != nil {
				s.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "documentId": documentID})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch {
	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "history":
		payload, err := s.service.History(r.Context(), documentID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodGet && len(parts) == 5 && parts[3] == "versions":
		payload, err := s.service.Version(r.Context(), documentID, parts[4])
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "versions":
		if !s.allow(w, session, rbac.ActionWrite) {
			return
		}
		var body struct {
			Hash string `json:"hash"`
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.NameVersion(r.Context(), documentID, body.Hash, body.Name)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "compare":
		query := r.URL.Query()
		payload, err := s.service.Compare(r.Context(), documentID, query.Get("from"), query.Get("to"))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "embeds":
		if !s.allow(w, session, rbac.ActionWrite) {
			return
		}
		var body EmbedInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.InsertEmbed(r.Context(), documentID, body, session.UserName)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodPost && len(parts) == 5 && parts[3] == "embeds" && parts[4] == "image":
		if !s.allow(w, session, rbac.ActionWrite) || !s.allow(w, session, rbac.ActionUpload) {
			return
		}
		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INDEX", "index must be an integer", nil)
			return
		}
		file, cleanup, err := s.readUpload(w, r)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		defer cleanup()
		payload, err := s.service.InsertImage(r.Context(), documentID, index, file, session.UserName)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "views":
		showAll, _ := strconv.ParseBool(r.URL.Query().Get("showAll"))
		payload, err := s.service.CreateView(r.Context(), documentID, showAll)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "files":
		payload, err := s.service.ListFiles(r.Context(), documentID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "export":
		query := r.URL.Query()
		format := query.Get("format")
		if format == "" {
			format = string(render.FormatHTML)
		}
		result, err := s.service.Export(r.Context(), documentID, format, query.Get("version"))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "live":
		s.handleLive(w, r, session, documentID)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) handleViews(w http.ResponseWriter, r *http.Request, viewID string, rest []string) {
	var (
		payload map[string]any
		err     error
	)
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		payload, err = s.service.GetView(r.Context(), viewID)
	case len(rest) == 0 && r.Method == http.MethodDelete:
		err = s.service.DeleteView(r.Context(), viewID)
		payload = map[string]any{"deleted": true, "viewId": viewID}
	case len(rest) == 1 && rest[0] == "toggle" && r.Method == http.MethodPost:
		payload, err = s.service.ToggleView(r.Context(), viewID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleFile(w http.ResponseWriter, r *http.Request, name string) {
	body, info, err := s.service.OpenFile(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer closeQuietly(body)

	w.Header().Set("Content-Type", info.ContentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("stream file")
	}
}

// readUpload extracts the multipart "file" field. Files sent without a
// usable type are sniffed.
func (s *HTTPServer) readUpload(w http.ResponseWriter, r *http.Request) (upload.File, func(), error) {
	limit := s.service.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		if isTooLarge(err) {
			return upload.File{}, nil, tooLargeError(limit)
		}
		return upload.File{}, nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Expected a multipart form", nil)
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		cleanup()
		return upload.File{}, nil, validationError("file is required")
	}
	if header.Size > limit {
		_ = file.Close()
		cleanup()
		return upload.File{}, nil, tooLargeError(limit)
	}

	contentType := header.Header.Get("Content-Type")
	var body io.Reader = file
	if contentType == "" || contentType == "application/octet-stream" {
		head := make([]byte, 512)
		n, err := io.ReadFull(file, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			_ = file.Close()
			cleanup()
			return upload.File{}, nil, err
		}
		contentType = http.DetectContentType(head[:n])
		body = io.MultiReader(bytes.NewReader(head[:n]), file)
	}

	return upload.File{
			Name:        header.Filename,
			ContentType: contentType,
			Size:        header.Size,
			Body:        body,
		}, func() {
			_ = file.Close()
			cleanup()
		}, nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func tooLargeError(limit int64) *DomainError {
	return domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File is too large", map[string]any{"maxBytes": limit})
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("code", code).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		// Browsers cannot set headers on a websocket handshake.
		token = r.URL.Query().Get("access_token")
	}
	if token == "" && s.service.AuthEnabled() {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		elapsed := time.Since(started)
		s.service.Metrics().ObserveRequest(r.Method, routeLabel(r.URL.Path), writer.status, elapsed)
		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("request")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// routeLabel collapses ids so request metrics keep a bounded label set.
func routeLabel(path string) string {
	parts := splitPath(path)
	if len(parts) >= 3 && parts[0] == "api" {
		switch parts[1] {
		case "documents", "views":
			parts[2] = "{id}"
			if len(parts) == 5 && parts[3] == "versions" {
				parts[4] = "{hash}"
			}
		case "files":
			if parts[2] != "upload" {
				parts[2] = "{name}"
			}
		}
	}
	if len(parts) > 5 {
		parts = append(parts[:5], "...")
	}
	return "/" + strings.Join(parts, "/")
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var uploadErr *embed.UploadFailureError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, content.ErrMalformedDocument):
		return http.StatusUnprocessableEntity, "MALFORMED_DOCUMENT", "Document value is malformed", nil
	case errors.Is(err, embed.ErrUnsupportedImageType):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_IMAGE_TYPE", "Only png, jpeg, gif, bmp and x-icon images are accepted", nil
	case errors.Is(err, embed.ErrUnknownKind):
		return http.StatusUnprocessableEntity, "UNKNOWN_EMBED_KIND", err.Error(), nil
	case errors.As(err, &uploadErr):
		return http.StatusBadGateway, "UPLOAD_FAILED", "Upload failed", map[string]any{"reason": uploadErr.Err.Error()}
	case errors.Is(err, embed.ErrCancelled):
		return http.StatusConflict, "DOCUMENT_BUSY", "Document is busy", nil
	case errors.Is(err, editor.ErrReadOnly):
		return http.StatusForbidden, "READ_ONLY", "Document is open read-only", nil
	case errors.Is(err, upload.ErrNotFound):
		return http.StatusNotFound, "FILE_NOT_FOUND", "File not found", nil
	case errors.Is(err, preview.ErrViewNotFound):
		return http.StatusNotFound, "VIEW_NOT_FOUND", "View not found or expired", nil
	case errors.Is(err, render.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_FORMAT", "Supported formats are html, pdf and docx", nil
	case errors.Is(err, render.ErrPDFDependencyMissing) || errors.Is(err, render.ErrDOCXDependencyMissing):
		return http.StatusNotImplemented, "EXPORT_UNAVAILABLE", "Export format is unavailable on this server", nil
	case errors.Is(err, render.ErrContentUnavailable):
		return http.StatusUnprocessableEntity, "CONTENT_UNAVAILABLE", "Document content is unavailable", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
