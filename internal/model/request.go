package model

import (
	"time"

	"github.com/google/uuid"
)

// ConvertRequest asks the worker to run a conversion batch for a session.
// It is the payload of the conversion topic.
type ConvertRequest struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	Settings    Settings  `json:"settings"`
	RequestedAt time.Time `json:"requested_at"`
}
