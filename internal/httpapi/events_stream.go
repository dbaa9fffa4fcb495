package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/voxlate/internal/events"
	"horse.fit/voxlate/internal/settings"
)

const sseBufferSize = 64

// handleEvents streams every bus event as server-sent events until the client
// disconnects. Events are dropped for a client whose buffer is full.
func (s *Server) handleEvents(c echo.Context) error {
	if s.deps.Bus == nil {
		return fail(c, http.StatusNotImplemented, "Event stream is not enabled", nil)
	}

	res := c.Response()
	controller := http.NewResponseController(res.Writer)
	_ = controller.SetWriteDeadline(time.Time{})

	queue := make(chan events.Envelope, sseBufferSize)
	untap := s.deps.Bus.Tap(func(envelope events.Envelope) {
		select {
		case queue <- redactEnvelope(envelope):
		default:
			s.logger.Warn().Str("topic", envelope.Topic).Msg("event stream client is slow, dropping event")
		}
	})
	defer untap()

	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(res, ": connected\n\n"); err != nil {
		return nil
	}
	res.Flush()

	heartbeat := time.NewTicker(s.opts.SSEHeartbeat)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case envelope := <-queue:
			payload, err := json.Marshal(envelope)
			if err != nil {
				s.logger.Warn().Err(err).Str("topic", envelope.Topic).Msg("encode stream event failed")
				continue
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", envelope.Topic, payload); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func redactEnvelope(envelope events.Envelope) events.Envelope {
	if value, ok := envelope.Payload.(settings.Settings); ok {
		envelope.Payload = value.Redacted()
	}
	return envelope
}
