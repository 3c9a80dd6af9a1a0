package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	apperrors "github.com/louisbranch/encore/internal/platform/errors"
	"github.com/louisbranch/encore/internal/services/companion/issuer"
	"github.com/louisbranch/encore/internal/services/companion/responder"
)

const (
	maxFramePayloadBytes   = 4 * 1024
	maxFrameBytes          = 2 * maxFramePayloadBytes
	maxFramesPerSecond     = 10
	maxDecodeErrorsPerConn = 3
)

// Frame types.
const (
	frameChatSend        = "chat.send"
	frameChatHistory     = "chat.history"
	frameChatMessage     = "chat.message"
	frameChatTransaction = "chat.transaction"
	frameChatError       = "chat.error"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type sendPayload struct {
	Text    string `json:"text"`
	Publish bool   `json:"publish"`
}

type historyEnvelope struct {
	Messages []responder.Message `json:"messages"`
}

type messageEnvelope struct {
	Message responder.Message `json:"message"`
}

type transactionEnvelope struct {
	Transaction issuer.Record `json:"transaction"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type wsPeer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return websocket.JSON.Send(p.conn, frame)
}

// chatSocket upgrades after the concert check passes, so an unknown concert
// surfaces as a plain HTTP error.
func (h *handler) chatSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		concertID := r.PathValue("id")
		history, err := h.deps.Interaction.Transcript(r.Context(), concertID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		websocket.Handler(func(conn *websocket.Conn) {
			h.serveChat(conn, concertID, history)
		}).ServeHTTP(w, r)
	}
}

func (h *handler) serveChat(conn *websocket.Conn, concertID string, history []responder.Message) {
	defer func() {
		_ = conn.Close()
	}()
	ctx := conn.Request().Context()
	// Oversized frames are rejected before their payload is buffered.
	conn.MaxPayloadBytes = maxFrameBytes
	peer := &wsPeer{conn: conn}

	if err := peer.writeFrame(wsFrame{Type: frameChatHistory, Payload: mustJSON(historyEnvelope{Messages: history})}); err != nil {
		return
	}

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0
	for {
		var frame wsFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			message := "invalid frame payload"
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				message = "frame too large"
			}
			_ = writeWSError(peer, "", "invalid_argument", message)
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(peer, frame.RequestID, "invalid_argument", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, frame.RequestID, "resource_exhausted", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case frameChatSend:
			var payload sendPayload
			if err := json.Unmarshal(frame.Payload, &payload); err != nil {
				_ = writeWSError(peer, frame.RequestID, "invalid_argument", "invalid send payload")
				continue
			}
			result, err := h.deps.Interaction.Chat(ctx, concertID, payload.Text, payload.Publish)
			if result.Reply.ID != "" {
				_ = peer.writeFrame(wsFrame{Type: frameChatMessage, RequestID: frame.RequestID, Payload: mustJSON(messageEnvelope{Message: result.User})})
				_ = peer.writeFrame(wsFrame{Type: frameChatMessage, RequestID: frame.RequestID, Payload: mustJSON(messageEnvelope{Message: result.Reply})})
			}
			if result.Transaction != nil {
				_ = peer.writeFrame(wsFrame{Type: frameChatTransaction, RequestID: frame.RequestID, Payload: mustJSON(transactionEnvelope{Transaction: *result.Transaction})})
			}
			if err != nil {
				if apperrors.KindOf(err) == apperrors.KindUnknown {
					h.deps.Logger.Printf("chat socket: concert=%s err=%v", concertID, err)
				}
				_ = writeWSError(peer, frame.RequestID, string(apperrors.KindOf(err)), apperrors.UserMessage(err))
			}
		default:
			_ = writeWSError(peer, frame.RequestID, "invalid_argument", "unsupported frame type")
		}
	}
}

func writeWSError(peer *wsPeer, requestID string, code string, message string) error {
	return peer.writeFrame(wsFrame{
		Type:      frameChatError,
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{Error: wsError{
			Code:      code,
			Message:   message,
			Retryable: false,
		}}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
