package store

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Job run statuses
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// JobRun records one execution of a scheduled job
type JobRun struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"index:idx_job_started" json:"name"`
	Schedule   string     `json:"schedule"`
	Status     string     `json:"status"`
	Processed  int        `json:"processed"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `gorm:"index:idx_job_started" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration returns how long the run took, zero while running
func (r *JobRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// BeforeCreate hook for JobRun
func (r *JobRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateID("run")
	}
	if r.Status == "" {
		r.Status = JobStatusRunning
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	return nil
}

// generateID creates a unique ID with nanosecond precision
func generateID(prefix string) string {
	return prefix + "_" + time.Now().Format("20060102150405") + "_" + randomString(8)
}

// randomString generates a cryptographically secure random string
func randomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	rand.Read(b)
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b)
}

// ToJSON converts struct to JSON bytes
func ToJSON(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// FromJSON parses JSON bytes into struct
func FromJSON(data json.RawMessage, v interface{}) error {
	return json.Unmarshal(data, v)
}
