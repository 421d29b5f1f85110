// Package telemetry broadcasts JSON snapshots to websocket observers (the
// bridge publishes the latched RobotStatus as "world_model" frames and each
// ExecutionResult as "execution_result" frames). Grounded on the teacher's subscriber fan-out
// (internal/events/stream.go's sequence numbering and non-blocking per-client
// delivery) and the pack's ws_handler.go upgrade/broadcast loop
// (ROM-robotics-rom_go_app/handlers/ws_handler.go), generalised from a
// per-robot JSON broadcast to a sequence-numbered, snappy-compressed bridge
// snapshot stream.
package telemetry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/gorilla/websocket"

	"wheellybridge/bridge/internal/logging"
)

// Kind tags the payload carried by a Frame.
type Kind string

const (
	KindWorldModel      Kind = "world_model"
	KindExecutionResult Kind = "execution_result"
)

// Frame is one sequence-numbered, snappy-compressed observer broadcast unit.
type Frame struct {
	Sequence uint64
	Kind     Kind
	Payload  []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 65536,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out telemetry frames to any number of connected websocket
// observers, dropping frames for subscribers that fall behind rather than
// blocking the control loop.
type Hub struct {
	mu          sync.Mutex
	nextSeq     uint64
	subscribers map[string]chan Frame
	logger      *logging.Logger
}

// NewHub constructs an empty telemetry hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.L()
	}
	return &Hub{subscribers: make(map[string]chan Frame), logger: logger}
}

// Publish marshals v to JSON, snappy-compresses it, and fans it out to every
// connected observer; slow observers miss frames instead of stalling the
// publisher.
func (h *Hub) Publish(kind Kind, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, data)

	h.mu.Lock()
	h.nextSeq++
	frame := Frame{Sequence: h.nextSeq, Kind: kind, Payload: compressed}
	subscribers := make([]chan Frame, 0, len(h.subscribers))
	for _, ch := range h.subscribers {
		subscribers = append(subscribers, ch)
	}
	h.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- frame:
		default:
			//1.- Drop the frame for a subscriber whose buffer is still full of older frames.
		}
	}
	return nil
}

// ServeWS upgrades the request to a websocket connection and streams frames
// to it until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("telemetry upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	id := r.RemoteAddr
	ch := h.subscribe(id)
	defer h.unsubscribe(id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.BinaryMessage, encodeFrame(frame)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) subscribe(id string) chan Frame {
	ch := make(chan Frame, 32)
	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
	h.mu.Unlock()
}

// encodeFrame renders a Frame as "<sequence> <kind>\n<payload bytes>".
func encodeFrame(f Frame) []byte {
	header := []byte(fmt.Sprintf("%d %s\n", f.Sequence, f.Kind))
	return append(header, f.Payload...)
}
