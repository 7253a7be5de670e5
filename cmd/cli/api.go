package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// apiError is the error body returned by the server.
type apiError struct {
	Status     int      `json:"-"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Similarity *float64 `json:"similarity,omitempty"`
}

func (e *apiError) Error() string {
	if e.Similarity != nil {
		return fmt.Sprintf("%s (%d): %s, similarity %.4f", e.Code, e.Status, e.Message, *e.Similarity)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

type authResponse struct {
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Similarity  *float64  `json:"similarity,omitempty"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// apiClient talks JSON to the face-keeper HTTP API.
type apiClient struct {
	base  string
	http  *http.Client
	token string
}

func newAPIClient(addr string, timeout time.Duration) *apiClient {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &apiClient{base: strings.TrimRight(addr, "/"), http: &http.Client{Timeout: timeout}}
}

func (c *apiClient) register(ctx context.Context, username, password string, images [][]byte) (*authResponse, error) {
	enc := make([]string, len(images))
	for i, img := range images {
		enc[i] = base64.StdEncoding.EncodeToString(img)
	}
	var out authResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"username": username,
		"password": password,
		"images":   enc,
	}, &out)
	return &out, err
}

func (c *apiClient) login(ctx context.Context, username, password string, image []byte) (*authResponse, error) {
	var out authResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"username":     username,
		"password":     password,
		"image_base64": base64.StdEncoding.EncodeToString(image),
	}, &out)
	return &out, err
}

func (c *apiClient) whoami(ctx context.Context) (string, error) {
	var out struct {
		Username string `json:"username"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &out)
	return out.Username, err
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e := &apiError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(e); err != nil || e.Code == "" {
			e.Code, e.Message = "http_error", resp.Status
		}
		return e
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
