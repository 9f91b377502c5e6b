// Package tracker adapts external multi-object trackers to the pipeline.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/dj-oyu/zone-traffic-monitor/internal/render"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

// HTTPTracker sends each frame to an inference sidecar that runs detection
// and tracking, and reads back identified boxes.
type HTTPTracker struct {
	url     string
	session string
	quality int
	client  *http.Client
}

// NewHTTPTracker creates a client for url. Requests carry the session id so
// the sidecar can keep one tracker state per session.
func NewHTTPTracker(url, session string, timeout time.Duration) *HTTPTracker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPTracker{
		url:     url,
		session: session,
		quality: render.DefaultQuality,
		client:  &http.Client{Timeout: timeout},
	}
}

type trackResponse struct {
	Tracks []types.Track `json:"tracks"`
}

// Track posts the frame as multipart JPEG in the "file" field.
func (h *HTTPTracker) Track(ctx context.Context, frame types.Frame) ([]types.Track, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("frame %d has no image", frame.FrameNum)
	}
	data, err := render.EncodeJPEG(frame.Image, h.quality)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.WriteField("session", h.session); err != nil {
		return nil, fmt.Errorf("write session field: %w", err)
	}
	if err := writer.WriteField("frame", strconv.FormatUint(frame.FrameNum, 10)); err != nil {
		return nil, fmt.Errorf("write frame field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker returned status %d", resp.StatusCode)
	}

	var result trackResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Tracks, nil
}

// CheckHealth calls <url>/health.
func (h *HTTPTracker) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tracker unhealthy: %d", resp.StatusCode)
	}
	return nil
}
