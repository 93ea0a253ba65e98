// Package protocol defines the JSON frames exchanged over the duplex channel.
// Every frame carries a "type" discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"relaychat/internal/domain"
)

// Client -> Server frame types.
const (
	TypeAuth     = "auth"
	TypeSend     = "send"
	TypeMarkRead = "mark_read"
	TypePing     = "ping"
)

// Server -> Client frame types.
const (
	TypeReady         = "ready"
	TypeDelivered     = "delivered"
	TypeIncoming      = "incoming"
	TypeFileAvailable = "file-available"
	TypeRead          = "read"
	TypePong          = "pong"
	TypeError         = "error"
)

// AuthFrame is the handshake frame used when no token was presented on the
// upgrade request.
type AuthFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// SendFrame asks the server to dispatch a text message. Attachments only
// enter through the file upload endpoint.
type SendFrame struct {
	Type string  `json:"type"`
	To   string  `json:"to"`
	Text *string `json:"text,omitempty"`
}

// MarkReadFrame marks every message from Peer as read.
type MarkReadFrame struct {
	Type string `json:"type"`
	Peer string `json:"peer"`
}

type PingFrame struct {
	Type string `json:"type"`
}

// ParseClientFrame decodes data into the concrete frame for its type.
func ParseClientFrame(data []byte) (string, any, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: invalid frame: %w", err)
	}

	var frame any
	switch env.Type {
	case TypeAuth:
		frame = &AuthFrame{}
	case TypeSend:
		frame = &SendFrame{}
	case TypeMarkRead:
		frame = &MarkReadFrame{}
	case TypePing:
		frame = &PingFrame{}
	case "":
		return "", nil, fmt.Errorf("protocol: missing \"type\" field")
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown frame type %q", env.Type)
	}
	if err := json.Unmarshal(data, frame); err != nil {
		return env.Type, nil, fmt.Errorf("protocol: invalid %s frame: %w", env.Type, err)
	}
	return env.Type, frame, nil
}

type ReadyFrame struct {
	Type     string `json:"type"`
	Identity string `json:"identity"`
}

// DeliveredFrame acknowledges a dispatched message to its sender.
type DeliveredFrame struct {
	Type      string    `json:"type"`
	MessageID int64     `json:"message_id"`
	To        string    `json:"to"`
	Flagged   bool      `json:"flagged"`
	CreatedAt time.Time `json:"created_at"`
}

// IncomingFrame carries a new message to its recipient.
type IncomingFrame struct {
	Type      string    `json:"type"`
	MessageID int64     `json:"message_id"`
	From      string    `json:"from"`
	Text      *string   `json:"text,omitempty"`
	FileRef   *string   `json:"file_ref,omitempty"`
	Flagged   bool      `json:"flagged"`
	CreatedAt time.Time `json:"created_at"`
}

// FileAvailableFrame announces an ephemeral file. It never carries content.
type FileAvailableFrame struct {
	Type      string    `json:"type"`
	FileID    string    `json:"file_id"`
	From      string    `json:"from"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ReadFrame struct {
	Type    string `json:"type"`
	Peer    string `json:"peer"`
	Updated int64  `json:"updated"`
}

type PongFrame struct {
	Type string `json:"type"`
}

// ErrorFrame is the duplex form of a structured rejection.
type ErrorFrame struct {
	Type            string `json:"type"`
	Code            string `json:"code"`
	Message         string `json:"message"`
	UpgradeRequired bool   `json:"upgrade_required"`
	Retryable       bool   `json:"retryable"`
}

func NewIncoming(m *domain.Message) *IncomingFrame {
	return &IncomingFrame{
		Type:      TypeIncoming,
		MessageID: m.ID,
		From:      m.From,
		Text:      m.Text,
		FileRef:   m.FileRef,
		Flagged:   m.Flagged,
		CreatedAt: m.CreatedAt,
	}
}

func NewFileAvailable(f *domain.TempFile) *FileAvailableFrame {
	return &FileAvailableFrame{
		Type:      TypeFileAvailable,
		FileID:    f.ID,
		From:      f.From,
		Name:      f.Name,
		Size:      f.Size,
		MimeType:  f.MimeType,
		ExpiresAt: f.ExpiresAt,
	}
}

// ErrorFrameFrom maps err onto the error frame shape shared with the REST
// rejection body.
func ErrorFrameFrom(err error) *ErrorFrame {
	return &ErrorFrame{
		Type:            TypeError,
		Code:            string(domain.CodeOf(err)),
		Message:         domain.MessageOf(err),
		UpgradeRequired: domain.UpgradeRequired(err),
		Retryable:       domain.Retryable(err),
	}
}
