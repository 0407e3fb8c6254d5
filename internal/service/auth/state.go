package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/smallbiznis/adsbridge/internal/domain"
)

type statePayload struct {
	UserID string `json:"userId"`
}

// EncodeState wraps userID into the opaque state carried through the OAuth redirect.
func EncodeState(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", domain.NewValidationError("userId is required")
	}
	raw, err := json.Marshal(statePayload{UserID: userID})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeState reverses EncodeState.
func DecodeState(state string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(state))
	if err != nil {
		return "", domain.NewValidationError("Invalid state parameter")
	}
	var payload statePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", domain.NewValidationError("Invalid state parameter")
	}
	if payload.UserID == "" {
		return "", domain.NewValidationError("Invalid state parameter: userId missing")
	}
	return payload.UserID, nil
}
