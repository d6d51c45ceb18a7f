package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camrelay/internal/api/models"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/records"
)

// registerRecordRoutes serves the recognition log. The CSV is read on every
// request so new rows show up immediately.
func (s *Server) registerRecordRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-records",
		Method:      http.MethodGet,
		Path:        "/api/records",
		Summary:     "List records",
		Description: "Recognition records, newest first, filtered and paged",
		Tags:        []string{"records"},
	}, func(ctx context.Context, input *models.RecordsRequest) (*models.RecordsResponse, error) {
		filter := records.Filter{
			Status:   input.Status,
			Q:        input.Q,
			Page:     input.Page,
			PageSize: input.PageSize,
		}
		return &models.RecordsResponse{Body: records.Query(s.loadRecords(), filter)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Attendance statistics",
		Description: "Per-person, per-day and per-month counts; a person counts once per day",
		Tags:        []string{"records"},
	}, func(ctx context.Context, input *struct{}) (*models.StatsResponse, error) {
		var labels map[string]string
		if s.options.Labels != nil {
			labels = s.options.Labels.Snapshot()
		}
		return &models.StatsResponse{Body: records.ComputeStats(s.loadRecords(), labels)}, nil
	})
}

// loadRecords never fails the request; an unreadable log reads as empty.
func (s *Server) loadRecords() []records.Record {
	recs, err := records.Load(s.options.RecordsPath)
	if err != nil {
		logging.GetLogger("records").Error("Reading records failed", "path", s.options.RecordsPath, "error", err)
		return nil
	}
	return recs
}
