package submission

import (
	"context"
	"strings"
	"sync"
)

// Journal records which payment hashes already authorised a posting.
type Journal interface {
	Consumed(ctx context.Context, txHash string) (bool, error)
	MarkConsumed(ctx context.Context, txHash, jobID string) error
}

// MemoryJournal is the process-local Journal used when no database is configured.
type MemoryJournal struct {
	mu   sync.Mutex
	used map[string]string
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{used: make(map[string]string)}
}

func (j *MemoryJournal) Consumed(_ context.Context, txHash string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.used[strings.ToLower(txHash)]
	return ok, nil
}

func (j *MemoryJournal) MarkConsumed(_ context.Context, txHash, jobID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.used[strings.ToLower(txHash)] = jobID
	return nil
}
