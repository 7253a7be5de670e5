package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/and161185/face-keeper/internal/model"
)

const defaultEncoderURL = "http://localhost:8001"

// HTTPClient calls the sidecar's /embed/face endpoint.
type HTTPClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewHTTPClient creates a client for the sidecar at baseURL.
func NewHTTPClient(baseURL, model string, timeout time.Duration) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultEncoderURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// faceResponse is the body returned by /embed/face.
type faceResponse struct {
	FacesCount int        `json:"faces_count"`
	Faces      []faceJSON `json:"faces"`
	Model      string     `json:"model"`
}

// Model returns the model name being requested.
func (c *HTTPClient) Model() string { return c.model }

// Detect uploads the image as multipart form data and decodes the detections.
func (c *HTTPClient) Detect(ctx context.Context, image []byte) ([]model.Detection, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image"`)
	h.Set("Content-Type", http.DetectContentType(image))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed/face", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("encoder error (status %d): %s", resp.StatusCode, string(body))
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return toDetections(faceResp.Faces)
}
