package domain

import "time"

type Status string

const (
	Waiting   Status = "waiting"
	Active    Status = "active"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// Backoff controls how a job is delayed between retry attempts.
// The delay before attempt n is BaseDelay * n.
type Backoff struct {
	BaseDelay time.Duration `json:"base_delay"`
}

// Job is the envelope pushed through the queue. Payload is a JSON
// document whose shape is determined by Type; see DecodePayload.
type Job struct {
	ID          string    `json:"id"`
	Queue       string    `json:"queue"`
	Type        JobType   `json:"type"`
	Payload     []byte    `json:"payload"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	Backoff     Backoff   `json:"backoff"`
	Priority    int       `json:"priority"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	RunAt       time.Time `json:"run_at"`
	Status      Status    `json:"status"`
	LastError   string    `json:"last_error,omitempty"`
}

// NextDelay returns the delay to apply before the next attempt,
// given that Attempt has already been incremented.
func (j *Job) NextDelay() time.Duration {
	base := j.Backoff.BaseDelay
	if base <= 0 {
		base = 2 * time.Second
	}
	n := j.Attempt
	if n < 1 {
		n = 1
	}
	return base * time.Duration(n)
}

// Exhausted reports whether the job has used up its retry budget.
func (j *Job) Exhausted() bool {
	max := j.MaxAttempts
	if max <= 0 {
		max = 3
	}
	return j.Attempt >= max
}
