// Package models holds the request and response shapes of the HTTP API.
package models

import (
	"github.com/smazurov/camrelay/internal/capture"
	"github.com/smazurov/camrelay/internal/records"
)

// Health check models
type HealthData struct {
	OK       bool `json:"ok" example:"true" doc:"Always true while the process serves requests"`
	HasFrame bool `json:"has_frame" example:"true" doc:"Whether a frame has been published"`
}

type HealthResponse struct {
	Body HealthData
}

// Snapshot models. Body is raw JPEG, or "no frame" as text with a 503.
type SnapshotResponse struct {
	Status       int
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// Status models
type StatusResponse struct {
	Body capture.SessionStatus
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-03-01T08:00:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"OS/architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Record models
type RecordsRequest struct {
	Status   string `query:"status" example:"MATCH" doc:"Filter by status, case-insensitive"`
	Q        string `query:"q" doc:"Case-insensitive substring of name or status"`
	Page     int    `query:"page" default:"1" doc:"1-based page number"`
	PageSize int    `query:"pageSize" default:"20" doc:"Records per page, at most 500"`
}

type RecordsResponse struct {
	Body records.Page
}

type StatsResponse struct {
	Body records.Stats
}
