package engineclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

type MoveRequest struct {
	FEN   string `json:"fen"`
	Level int    `json:"level"`
}

type MoveResponse struct {
	Move        string `json:"move"`
	FEN         string `json:"fen"`
	IsCheckmate bool   `json:"is_checkmate"`
	IsStalemate bool   `json:"is_stalemate"`
	IsCheck     bool   `json:"is_check"`
}

// ValidateResponse mirrors /validate-move; only Valid is set for rejected moves.
type ValidateResponse struct {
	Valid       bool   `json:"valid"`
	FEN         string `json:"fen,omitempty"`
	IsCheckmate bool   `json:"is_checkmate,omitempty"`
	IsStalemate bool   `json:"is_stalemate,omitempty"`
	IsCheck     bool   `json:"is_check,omitempty"`
}

// OpponentInfo is one entry of the /opponents mapping.
type OpponentInfo struct {
	Name          string  `json:"name"`
	Title         string  `json:"title"`
	Depth         int     `json:"depth"`
	BlunderChance float64 `json:"blunder_chance"`
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("engine api error: status=%d detail=%s", e.Status, e.Detail)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool { return shouldRetryStatus(e.Status) }

func newAPIError(status int, body []byte) *APIError {
	detail := "Unknown error"
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Detail) > 0 {
		var s string
		if json.Unmarshal(eb.Detail, &s) == nil {
			detail = s
		} else {
			// validation errors carry a list of objects
			detail = string(eb.Detail)
		}
	} else if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		detail = truncate(trimmed, 512)
	}
	return &APIError{Status: status, Detail: detail}
}
