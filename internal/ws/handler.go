package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"relaychat/internal/domain"
	"relaychat/internal/protocol"
	"relaychat/internal/service"
)

// Authenticator resolves a session token to an identity.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// Dispatcher is the shared send path.
type Dispatcher interface {
	Dispatch(ctx context.Context, in service.DispatchInput) (*service.DispatchResult, error)
}

// ReadMarker records read receipts.
type ReadMarker interface {
	MarkRead(ctx context.Context, recipient, sender string) (int64, error)
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if _, wildcard := allowed["*"]; wildcard {
		return func(r *http.Request) bool { return true }
	}
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// extractTokenFromWSRequest reads a bearer token from the Authorization
// header or from "Sec-WebSocket-Protocol: bearer, <token>". An empty result
// means the client will authenticate with an auth frame instead.
func extractTokenFromWSRequest(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return ""
}

// MakeHandler returns the /ws handler. After authentication the connection
// is registered with the hub and accepts these frames:
//   - send      -> dispatch; answered with delivered or error
//   - mark_read -> mark the peer's messages read; answered with read
//   - ping      -> pong
func MakeHandler(
	hub *Hub,
	auth Authenticator,
	dispatcher Dispatcher,
	reads ReadMarker,
	allowedOrigins []string,
	log *zap.Logger,
) http.HandlerFunc {
	log = log.Named("ws")
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		token := extractTokenFromWSRequest(r)
		var identity string
		if token != "" {
			id, err := auth.Authenticate(token)
			if err != nil {
				http.Error(w, "invalid session", http.StatusUnauthorized)
				return
			}
			identity = id
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxFrameBytes)
		c := newClient(conn)

		if identity == "" {
			token, identity, err = awaitAuthFrame(conn, auth)
			if err != nil {
				_ = c.WriteJSON(protocol.ErrorFrameFrom(domain.Unauthenticated("authentication required")))
				return
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		connID := uuid.NewString()
		hub.Register(connID, token, identity, c)
		defer hub.Unregister(connID)
		log.Debug("connected", zap.String("identity", identity), zap.String("conn_id", connID))

		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go keepAlive(ctx, c)

		if err := c.WriteJSON(&protocol.ReadyFrame{Type: protocol.TypeReady, Identity: identity}); err != nil {
			return
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug("read failed", zap.String("conn_id", connID), zap.Error(err))
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))

			reply := handleFrame(ctx, identity, data, dispatcher, reads, log)
			if reply == nil {
				continue
			}
			if err := c.WriteJSON(reply); err != nil {
				return
			}
		}
	}
}

func awaitAuthFrame(conn *websocket.Conn, auth Authenticator) (string, string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", "", err
	}
	typ, frame, err := protocol.ParseClientFrame(data)
	if err != nil {
		return "", "", err
	}
	if typ != protocol.TypeAuth {
		return "", "", errors.New("first frame must be auth")
	}
	token := frame.(*protocol.AuthFrame).Token
	identity, err := auth.Authenticate(token)
	if err != nil {
		return "", "", err
	}
	return token, identity, nil
}

func keepAlive(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func handleFrame(
	ctx context.Context,
	identity string,
	data []byte,
	dispatcher Dispatcher,
	reads ReadMarker,
	log *zap.Logger,
) any {
	typ, frame, err := protocol.ParseClientFrame(data)
	if err != nil {
		return protocol.ErrorFrameFrom(domain.InvalidRequest(err.Error()))
	}

	switch typ {
	case protocol.TypeSend:
		f := frame.(*protocol.SendFrame)
		res, err := dispatcher.Dispatch(ctx, service.DispatchInput{
			From: identity,
			To:   f.To,
			Text: f.Text,
		})
		if err != nil {
			return protocol.ErrorFrameFrom(err)
		}
		return &protocol.DeliveredFrame{
			Type:      protocol.TypeDelivered,
			MessageID: res.MessageID,
			To:        f.To,
			Flagged:   res.Flagged,
			CreatedAt: res.CreatedAt,
		}

	case protocol.TypeMarkRead:
		f := frame.(*protocol.MarkReadFrame)
		n, err := reads.MarkRead(ctx, identity, f.Peer)
		if err != nil {
			return protocol.ErrorFrameFrom(err)
		}
		return &protocol.ReadFrame{Type: protocol.TypeRead, Peer: f.Peer, Updated: n}

	case protocol.TypePing:
		return &protocol.PongFrame{Type: protocol.TypePong}

	case protocol.TypeAuth:
		return protocol.ErrorFrameFrom(domain.InvalidRequest("already authenticated"))
	}

	log.Debug("unhandled frame type", zap.String("type", typ), zap.String("identity", identity))
	return nil
}
