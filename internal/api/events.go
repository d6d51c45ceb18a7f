package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camrelay/internal/events"
)

// registerSSERoutes registers the live event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Session state changes, probe results, freezes and recognition records as they happen",
		Tags:        []string{"events"},
	}, map[string]any{
		"session-state": events.SessionStateChangedEvent{},
		"candidate":     events.CandidateProbedEvent{},
		"frame-frozen":  events.FrameFrozenEvent{},
		"recognition":   events.RecognitionEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SessionStateChangedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.CandidateProbedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.FrameFrozenEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.RecognitionEvent](s.options.Bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Start every connection with the current state.
		status := s.options.Session.Status()
		if err := send.Data(events.SessionStateChangedEvent{
			To:        status.State,
			Candidate: status.Candidate,
			Reason:    "snapshot",
			Timestamp: time.Now(),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
