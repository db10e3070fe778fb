package types

import "time"

// JobState is the lifecycle state of a search job.
type JobState string

const (
	// JobIdle is the state before any job has been started
	JobIdle JobState = "idle"
	// JobRunning means the job goroutine is active
	JobRunning JobState = "running"
	// JobCompleted means the lookup and enrichment ran to the end
	JobCompleted JobState = "completed"
	// JobCancelled means a stop was requested and observed
	JobCancelled JobState = "cancelled"
	// JobFailed means the job ended with an error
	JobFailed JobState = "failed"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobCancelled || s == JobFailed
}

// JobProgress is an immutable snapshot of one search job.
// Writers build a new snapshot with Clone and publish it; readers never mutate it.
type JobProgress struct {
	JobID          string           `json:"job_id,omitempty"`
	Niche          string           `json:"niche,omitempty"`
	City           string           `json:"city,omitempty"`
	State          JobState         `json:"state"`
	Running        bool             `json:"running"`
	Phase          string           `json:"phase"`
	Percent        float64          `json:"progress"`
	Total          int              `json:"total"`
	Found          int              `json:"found"`
	CurrentItem    string           `json:"current_item"`
	ElapsedSeconds float64          `json:"elapsed_time"`
	StartedAt      time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
	Results        []BusinessRecord `json:"results"`
	Error          string           `json:"error,omitempty"`
}

// IdleProgress returns the snapshot served before the first job starts.
func IdleProgress() *JobProgress {
	return &JobProgress{
		State:   JobIdle,
		Results: []BusinessRecord{},
	}
}

// Clone returns a copy that can be modified without affecting the receiver.
func (p *JobProgress) Clone() *JobProgress {
	c := *p
	c.Results = make([]BusinessRecord, len(p.Results))
	copy(c.Results, p.Results)
	if p.FinishedAt != nil {
		t := *p.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// WhatsAppResults returns the results that carry a WhatsApp number.
func (p *JobProgress) WhatsAppResults() []BusinessRecord {
	out := make([]BusinessRecord, 0)
	for _, r := range p.Results {
		if r.WhatsApp != "" {
			out = append(out, r)
		}
	}
	return out
}
