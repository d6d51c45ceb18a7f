package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camrelay/internal/api/models"
)

var noFrameBody = []byte("no frame")

func (s *Server) registerFrameRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/snapshot",
		Summary:     "Snapshot",
		Description: "The most recent frame as JPEG, or 503 before the first frame",
		Tags:        []string{"frames"},
	}, func(ctx context.Context, input *struct{}) (*models.SnapshotResponse, error) {
		frame, ok := s.options.Frames.Snapshot()
		if !ok {
			return &models.SnapshotResponse{
				Status:       http.StatusServiceUnavailable,
				ContentType:  "text/plain",
				CacheControl: "no-store",
				Body:         noFrameBody,
			}, nil
		}
		return &models.SnapshotResponse{
			Status:       http.StatusOK,
			ContentType:  "image/jpeg",
			CacheControl: "no-store",
			Body:         frame.Data,
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "video-feed",
		Method:      http.MethodGet,
		Path:        "/video_feed",
		Summary:     "MJPEG stream",
		Description: "Continuous multipart/x-mixed-replace stream of the latest frames",
		Tags:        []string{"frames"},
	}, func(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
		return &huma.StreamResponse{
			Body: func(hctx huma.Context) {
				hctx.SetHeader("Content-Type", MJPEGContentType)
				hctx.SetHeader("Cache-Control", "no-cache, no-store, must-revalidate")
				hctx.SetStatus(http.StatusOK)

				err := s.mjpeg.Stream(hctx.Context(), hctx.BodyWriter())
				if err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Debug("Video feed consumer detached", "remote_addr", clientIP(hctx), "error", err)
				}
			},
		}, nil
	})
}
