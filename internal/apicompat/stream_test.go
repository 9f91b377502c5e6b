package apicompat

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestLiveMJPEGStream(t *testing.T) {
	client := newLiveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp := client.getResponse(t, ctx, "/video")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /video status = %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "multipart/x-mixed-replace") ||
		!strings.Contains(contentType, "boundary=frame") {
		t.Fatalf("GET /video content-type = %q", contentType)
	}

	head := make([]byte, 64)
	n, err := resp.Body.Read(head)
	if err != nil && n == 0 {
		t.Fatalf("read first part: %v", err)
	}
	if !strings.HasPrefix(string(head[:n]), "--frame") {
		t.Fatalf("first part starts with %q", head[:n])
	}
}

func TestLiveStatsStream(t *testing.T) {
	client := newLiveClient(t)
	event, headers, err := readSSEEvent(client.baseURL+"/stats/stream", 3*time.Second)
	if err != nil {
		t.Skipf("stats stream unavailable: %v", err)
	}
	if !strings.Contains(headers.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("stats stream content-type = %q", headers.Get("Content-Type"))
	}
	assertStatsPayload(t, parseSSEData(t, event))
}
