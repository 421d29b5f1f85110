package telemetry

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/gorilla/websocket"
)

func TestPublishWithNoSubscribersSucceeds(t *testing.T) {
	//1.- Publishing with no subscribers must not error or block.
	hub := NewHub(nil)
	if err := hub.Publish(KindWorldModel, map[string]int{"a": 1}); err != nil {
		t.Fatalf("unexpected error publishing with no subscribers: %v", err)
	}
}

func TestServeWSStreamsPublishedFrame(t *testing.T) {
	//1.- A connected websocket observer must receive a published frame.
	hub := NewHub(nil)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	payload := map[string]string{"hello": "world"}
	if err := hub.Publish(KindWorldModel, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	parts := bytes.SplitN(data, []byte("\n"), 2)
	if len(parts) != 2 {
		t.Fatalf("expected a header line and a payload, got %q", data)
	}
	if !strings.Contains(string(parts[0]), string(KindWorldModel)) {
		t.Fatalf("expected header to carry the kind, got %q", parts[0])
	}

	decompressed, err := snappy.Decode(nil, parts[1])
	if err != nil {
		t.Fatalf("snappy decode failed: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(decompressed, &got); err != nil {
		t.Fatalf("json unmarshal failed: %v", err)
	}
	if got["hello"] != "world" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}
