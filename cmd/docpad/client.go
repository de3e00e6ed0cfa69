package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docpad/api/internal/content"
	"docpad/api/internal/upload"
)

// apiClient talks to the docpad API on behalf of the terminal editor.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   60 * time.Second,
			Transport: bearerTransport{token: token, next: http.DefaultTransport},
		},
	}
}

// bearerTransport adds the API token to every request, including the ones the
// upload gateway makes.
type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token == "" {
		return t.next.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.next.RoundTrip(clone)
}

type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: %s: %s", e.Code, e.Message)
}

type documentInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type viewInfo struct {
	ID          string `json:"id"`
	DocumentID  string `json:"documentId"`
	Class       string `json:"class"`
	ShowToggle  bool   `json:"showToggle"`
	ToggleLabel string `json:"toggleLabel"`
	Expanded    bool   `json:"expanded"`
	Stale       bool   `json:"stale"`
}

type viewResponse struct {
	Document documentInfo  `json:"document"`
	View     viewInfo      `json:"view"`
	Value    content.Delta `json:"value"`
}

type embedResponse struct {
	Inserted   bool   `json:"inserted"`
	Kind       string `json:"kind"`
	EmbedValue string `json:"embedValue"`
	Commit     *struct {
		Hash string `json:"hash"`
	} `json:"commit"`
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) createView(ctx context.Context, documentID string, showAll bool) (viewResponse, error) {
	var out viewResponse
	path := fmt.Sprintf("/api/documents/%s/views?showAll=%t", url.PathEscape(documentID), showAll)
	err := c.do(ctx, http.MethodPost, path, nil, &out)
	return out, err
}

func (c *apiClient) toggleView(ctx context.Context, viewID string) (viewResponse, error) {
	var out viewResponse
	err := c.do(ctx, http.MethodPost, "/api/views/"+url.PathEscape(viewID)+"/toggle", nil, &out)
	return out, err
}

func (c *apiClient) insertEmbed(ctx context.Context, documentID string, kind content.EmbedKind, index int, value string) (embedResponse, error) {
	var out embedResponse
	body := map[string]any{"kind": kind, "index": index, "value": value}
	err := c.do(ctx, http.MethodPost, "/api/documents/"+url.PathEscape(documentID)+"/embeds", body, &out)
	return out, err
}

// uploadGateway posts files to the API's upload endpoint and links them
// to documentID.
func (c *apiClient) uploadGateway(documentID string) *upload.HTTPGateway {
	uploadURL := c.baseURL + "/api/files/upload?documentId=" + url.QueryEscape(documentID)
	return upload.NewHTTPGateway(uploadURL, c.baseURL+"/api/files", c.http)
}
