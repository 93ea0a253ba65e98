package httpserver

import (
	"encoding/json"
	"net/http"

	"relaychat/internal/domain"
)

type errorResponse struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	UpgradeRequired bool   `json:"upgrade_required"`
	Retryable       bool   `json:"retryable"`
}

func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeUnauthenticated:
		return http.StatusUnauthorized
	case domain.CodeNotFriends:
		return http.StatusForbidden
	case domain.CodeQuotaExceeded, domain.CodePaidFeature:
		return http.StatusPaymentRequired
	case domain.CodeInvalidText, domain.CodeInvalidRequest:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a structured rejection. Causes of internal errors
// are never exposed.
func writeError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)
	writeJSON(w, statusFor(code), errorResponse{
		Code:            string(code),
		Message:         domain.MessageOf(err),
		UpgradeRequired: domain.UpgradeRequired(err),
		Retryable:       domain.Retryable(err),
	})
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
