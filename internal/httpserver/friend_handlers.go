package httpserver

import (
	"encoding/json"
	"net/http"

	"relaychat/internal/domain"
	"relaychat/internal/service"
)

type addFriendRequest struct {
	Identity string `json:"identity"`
}

type friendResponse struct {
	Identity string `json:"identity"`
	Alias    string `json:"alias,omitempty"`
}

// handleAddFriend godoc
// @Summary      Add a friend
// @Tags         friends
// @Security     BearerAuth
// @Accept       json
// @Param        input body addFriendRequest true "Friend"
// @Success      204
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /friends [post]
func handleAddFriend(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addFriendRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBody)).Decode(&req); err != nil {
			writeError(w, domain.InvalidRequest("invalid JSON body"))
			return
		}
		if err := friendSvc.Add(r.Context(), CurrentIdentity(r), req.Identity); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleListFriends godoc
// @Summary      List friends
// @Tags         friends
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  friendResponse
// @Router       /friends [get]
func handleListFriends(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		list, err := friendSvc.List(r.Context(), identity)
		if err != nil {
			writeError(w, err)
			return
		}

		res := make([]friendResponse, 0, len(list))
		for _, f := range list {
			item := friendResponse{Identity: f.Peer(identity)}
			alias := f.HighAlias
			if f.Low == item.Identity {
				alias = f.LowAlias
			}
			if alias != nil {
				item.Alias = *alias
			}
			res = append(res, item)
		}
		writeJSON(w, http.StatusOK, res)
	}
}
