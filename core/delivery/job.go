package delivery

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State tracks a delivery job through its life cycle. Transitions are
// strictly forward: Pending, Sending, Finalizing, AwaitingCleanup, Cleaned.
type State string

const (
	StatePending         State = "pending"
	StateSending         State = "sending"
	StateFinalizing      State = "finalizing"
	StateAwaitingCleanup State = "awaiting_cleanup"
	StateCleaned         State = "cleaned"
)

// Item is one deliverable unit. Seq is 1-based and must be contiguous
// within a batch. SourceRef is an opaque handle to the stored media and
// Caption is the already rendered caption text.
type Item struct {
	Seq       int
	SourceRef string
	Caption   string
}

// Job is one delivery run to a single destination. It records every
// message id produced during the run so cleanup can remove them all,
// bookends included.
type Job struct {
	ID          string
	Destination int64
	Retention   time.Duration

	mu        sync.Mutex
	state     State
	sentIDs   []int
	createdAt time.Time

	cleanupOnce sync.Once
	cleaned     chan struct{}
}

func newJob(dest int64, retention time.Duration, now time.Time) *Job {
	return &Job{
		ID:          uuid.NewString(),
		Destination: dest,
		Retention:   retention,
		state:       StatePending,
		createdAt:   now,
		cleaned:     make(chan struct{}),
	}
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func (j *Job) recordSent(messageID int) {
	j.mu.Lock()
	j.sentIDs = append(j.sentIDs, messageID)
	j.mu.Unlock()
}

// SentMessageIDs returns a copy of every message id sent so far, in
// send order.
func (j *Job) SentMessageIDs() []int {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]int, len(j.sentIDs))
	copy(out, j.sentIDs)
	return out
}

// CleanupDone is closed once retention cleanup has finished.
func (j *Job) CleanupDone() <-chan struct{} { return j.cleaned }

func (j *Job) CreatedAt() time.Time { return j.createdAt }
