package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-converter/internal/model"
	"github.com/aliskhannn/image-converter/internal/queue"
	"github.com/aliskhannn/image-converter/internal/service/session"
)

// service defines the interface for running conversion batches.
type service interface {
	Convert(ctx context.Context, req model.ConvertRequest) (queue.BatchResult, error)
}

// RequestedHandler handles Kafka messages asking for a conversion batch.
type RequestedHandler struct {
	service service
}

// NewRequestedHandler creates a new handler with the given service.
func NewRequestedHandler(s service) *RequestedHandler {
	return &RequestedHandler{service: s}
}

// Handle unmarshals a conversion request and runs the batch. Requests for
// sessions that no longer exist, or that already have a batch running, are
// acknowledged and dropped since retrying cannot help them.
func (h *RequestedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var req model.ConvertRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		zlog.Logger.Err(err).Str("message", string(msg.Value)).Msg("dropping malformed conversion request")
		return nil
	}

	res, err := h.service.Convert(ctx, req)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, queue.ErrBatchInProgress) {
			zlog.Logger.Warn().
				Err(err).
				Str("session", req.SessionID.String()).
				Msg("conversion request dropped")
			return nil
		}

		return fmt.Errorf("convert session %s: %w", req.SessionID, err)
	}

	zlog.Logger.Info().
		Str("session", req.SessionID.String()).
		Int("converted", res.Converted).
		Int("failed", res.Failed).
		Msg("conversion request processed")

	return nil
}
