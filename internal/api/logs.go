package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/logging"
)

// registerLogRoutes registers the log streaming SSE endpoint.
func (s *Server) registerLogRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Buffered log history followed by new entries as they are written",
		Tags:        []string{"logs"},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before replaying so nothing written in between is lost;
		// entries already replayed are skipped by Seq.
		eventCh := make(chan any, 256)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.options.Bus, eventCh)
		defer unsubscribe()

		var last uint64
		if ring := logging.Buffer(); ring != nil {
			for _, entry := range ring.Entries() {
				if err := send.Data(logEvent(entry)); err != nil {
					return
				}
				last = entry.Seq
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if e, ok := ev.(events.LogEntryEvent); ok && e.Seq <= last {
					continue
				}
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}

func logEvent(e logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        e.Seq,
		Timestamp:  e.Timestamp,
		Level:      e.Level,
		Module:     e.Module,
		Message:    e.Message,
		Attributes: e.Attributes,
	}
}
