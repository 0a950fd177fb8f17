package domain

import "time"

// SyncState is the only durable checkpoint. It is overwritten wholesale on each run.
type SyncState struct {
	LastSyncTimestamp time.Time `json:"lastSync"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionSkip    Action = "skip"
	ActionExclude Action = "exclude"
	ActionFailed  Action = "failed"
)

// ItemResult records what happened to a single candidate.
type ItemResult struct {
	ExternalID string
	Title      string
	Action     Action
	Path       string
	Reason     string
	Error      string
}

type Failure struct {
	Title string
	Error string
}

// SyncReport holds statistics about a sync run.
type SyncReport struct {
	DryRun        bool
	Force         bool
	StartedAt     time.Time
	PreviousSync  time.Time
	Fetched       int
	Created       int
	Updated       int
	Skipped       int
	Excluded      int
	Failed        int
	Published     int
	PublishErrors int
	Media         MediaStats
	Failures      []Failure
	Items         []ItemResult
	Duration      time.Duration
}

func (r *SyncReport) Record(item ItemResult) {
	switch item.Action {
	case ActionCreate:
		r.Created++
	case ActionUpdate:
		r.Updated++
	case ActionSkip:
		r.Skipped++
	case ActionExclude:
		r.Excluded++
	case ActionFailed:
		r.Failed++
		r.Failures = append(r.Failures, Failure{Title: item.Title, Error: item.Error})
	}
	r.Items = append(r.Items, item)
}
