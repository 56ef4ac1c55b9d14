package ws

import json "github.com/goccy/go-json"

// client → server envelope
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectWordPayload struct {
	Word string `json:"word"`
}

type newMessagePayload struct {
	Message string `json:"message"`
}

type voteKickPayload struct {
	TargetUserID string `json:"target_user_id"`
}
