package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/techsync/internal/client/models"
	"github.com/fieldops/techsync/internal/common"
)

// HTTPClient talks JSON over HTTP to the sync endpoints.
type HTTPClient struct {
	baseURL  string
	deviceID string
	token    TokenFunc
	http     *http.Client
}

// NewHTTPClient builds a client for the given base URL. The per-call timeout
// bounds each HTTP exchange independently of the scheduler's own timers.
func NewHTTPClient(baseURL, deviceID string, token TokenFunc, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		deviceID: deviceID,
		token:    token,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/tech/login", "application/json", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return resp.Token, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

func (c *HTTPClient) Pull(ctx context.Context, since time.Time) (*PullResponse, error) {
	path := "/tech/sync?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	var resp PullResponse
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, fmt.Errorf("pull failed: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) PushBatch(ctx context.Context, muts []BatchMutation) (*BatchResponse, error) {
	body, err := json.Marshal(map[string]any{"mutations": muts})
	if err != nil {
		return nil, err
	}
	var resp BatchResponse
	if err := c.do(ctx, http.MethodPost, "/tech/sync/batch", "application/json", bytes.NewReader(body), &resp); err != nil {
		return nil, fmt.Errorf("batch push failed: %w", err)
	}
	return &resp, nil
}

// UploadPhoto sends the blob as multipart form data; JSON batches cannot
// carry it. The photo id travels with the form so a replayed upload after a
// lost acknowledgment has no second effect server-side.
func (c *HTTPClient) UploadPhoto(ctx context.Context, p *models.Photo) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"photo_id":      p.ID,
		"work_order_id": strconv.FormatInt(p.WorkOrderID, 10),
		"entity_type":   p.EntityType,
	}
	if p.EntityID != "" {
		fields["entity_id"] = p.EntityID
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	fw, err := w.CreateFormFile("file", p.FileName)
	if err != nil {
		return err
	}
	if _, err := fw.Write(p.Blob); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	if err := c.do(ctx, http.MethodPost, "/tech/sync/photo", w.FormDataContentType(), &buf, nil); err != nil {
		return fmt.Errorf("photo upload failed: %w", err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(common.DeviceIDHeaderName, c.deviceID)
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set(common.AuthHeaderName, "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
