package model

import "time"

// RunKind identifies what triggered a run.
type RunKind string

const (
	RunKindEnrich    RunKind = "enrich"
	RunKindEnrichIDs RunKind = "enrich_ids"
	RunKindReEnrich  RunKind = "re_enrich"
	RunKindIngest    RunKind = "ingest"
)

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one enrichment or ingestion job.
type Run struct {
	ID        string         `json:"id"`
	Kind      RunKind        `json:"kind"`
	Status    RunStatus      `json:"status"`
	Params    map[string]any `json:"params,omitempty"`
	Summary   *Summary       `json:"summary,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Summary is the user-visible outcome of a run. StaleFound is only set by
// re-enrichment; the ingest counters only by ingestion.
type Summary struct {
	Total      int  `json:"total"`
	Success    int  `json:"success"`
	Failed     int  `json:"failed"`
	StaleFound *int `json:"stale_found,omitempty"`

	Found   int `json:"found,omitempty"`
	New     int `json:"new,omitempty"`
	Updated int `json:"updated,omitempty"`
	Skipped int `json:"skipped,omitempty"`
}

// PhaseStatus represents the outcome of one strategy or phase for a record.
type PhaseStatus string

const (
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of one strategy run for one record.
type PhaseResult struct {
	Name     string      `json:"name"`
	Phase    int         `json:"phase"`
	Status   PhaseStatus `json:"status"`
	Duration int64       `json:"duration_ms"`
	Fields   []Field     `json:"fields,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Stats summarises the stored records.
type Stats struct {
	TotalRecords      int          `json:"total_records"`
	EnrichedRecords   int          `json:"enriched_records"`
	UnenrichedRecords int          `json:"unenriched_records"`
	AvgQualityScore   float64      `json:"avg_quality_score"`
	TopStates         []CountByKey `json:"top_states"`
	TopCategories     []CountByKey `json:"top_categories"`
}

// CountByKey is one row of a grouped count.
type CountByKey struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}
