package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"relaychat/internal/domain"
	"relaychat/internal/service"
	"relaychat/internal/ws"
)

// maxMessageBody bounds a send request body. It matches the duplex frame
// limit.
const maxMessageBody = 64 << 10

type sendMessageRequest struct {
	To   string  `json:"to"`
	Text *string `json:"text"`
}

type sendMessageResponse struct {
	MessageID int64     `json:"message_id"`
	Flagged   bool      `json:"flagged"`
	CreatedAt time.Time `json:"created_at"`
}

type markReadResponse struct {
	Updated int64 `json:"updated"`
}

// handleSendMessage godoc
// @Summary      Send a message
// @Description  Send a message to a friend. Free identities may send 10 text messages per UTC day.
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body sendMessageRequest true "Message"
// @Success      201  {object}  sendMessageResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      402  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /messages [post]
func handleSendMessage(dispatcher ws.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBody)).Decode(&req); err != nil {
			writeError(w, domain.InvalidRequest("invalid JSON body"))
			return
		}

		res, err := dispatcher.Dispatch(r.Context(), service.DispatchInput{
			From: CurrentIdentity(r),
			To:   req.To,
			Text: req.Text,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sendMessageResponse{
			MessageID: res.MessageID,
			Flagged:   res.Flagged,
			CreatedAt: res.CreatedAt,
		})
	}
}

// handleHistory godoc
// @Summary      Conversation history
// @Description  Most recent messages exchanged with a friend, oldest first
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        peer   path   string  true   "Peer identity"
// @Param        limit  query  int     false  "Max messages (default 50, max 200)"
// @Success      200  {array}   domain.Message
// @Failure      403  {object}  errorResponse
// @Router       /messages/{peer} [get]
func handleHistory(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				writeError(w, domain.InvalidRequest("invalid limit"))
				return
			}
			limit = n
		}

		msgs, err := msgSvc.History(r.Context(), CurrentIdentity(r), chi.URLParam(r, "peer"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// handleMarkRead godoc
// @Summary      Mark conversation read
// @Description  Marks every unread message from peer as read
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        peer  path  string  true  "Peer identity"
// @Success      200  {object}  markReadResponse
// @Router       /messages/{peer}/read [post]
func handleMarkRead(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := msgSvc.MarkRead(r.Context(), CurrentIdentity(r), chi.URLParam(r, "peer"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, markReadResponse{Updated: n})
	}
}
