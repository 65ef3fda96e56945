package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoCheckpoint      = errors.New("no checkpoint for thread")
	ErrCorruptCheckpoint = errors.New("corrupt checkpoint history")
	ErrStaleResume       = errors.New("stale resume token")
)

// Checkpoint is a durable snapshot of a thread's execution state at a
// node boundary, keyed by (thread id, sequence number). History is
// append-only; nothing deletes checkpoints in normal operation.
type Checkpoint struct {
	ThreadID string        `json:"thread_id"`
	Seq      uint64        `json:"seq"`
	Next     string        `json:"next,omitempty"` // node to execute on re-entry
	Awaiting bool          `json:"awaiting,omitempty"`
	Prompt   string        `json:"prompt,omitempty"` // text shown to the human while suspended
	Done     bool          `json:"done,omitempty"`   // turn fully completed
	State    *Conversation `json:"state"`
	SavedAt  time.Time     `json:"saved_at"`
}

// ResumeToken identifies a suspended execution point. It is only valid
// against the thread's latest checkpoint and is consumed by the first
// successful resume.
type ResumeToken struct {
	ThreadID string `json:"thread_id"`
	Seq      uint64 `json:"seq"`
}

// CheckpointLog stores checkpoints in a KV with gap-free, strictly
// increasing sequence numbers per thread.
type CheckpointLog struct {
	kv KV
}

func NewCheckpointLog(kv KV) *CheckpointLog {
	return &CheckpointLog{kv: kv}
}

// seq keys are zero-padded so lexical ordering matches numeric ordering.
func checkpointKey(threadID string, seq uint64) string {
	return fmt.Sprintf("%s:%012d", threadID, seq)
}

// Append persists a checkpoint. The sequence number must be exactly one
// past the latest; anything else indicates a programming error upstream.
func (l *CheckpointLog) Append(ctx context.Context, cp *Checkpoint) error {
	if cp == nil || cp.State == nil {
		return ErrNilConversation
	}
	if strings.TrimSpace(cp.ThreadID) == "" {
		return ErrInvalidThread
	}
	latest, err := l.Latest(ctx, cp.ThreadID)
	switch {
	case errors.Is(err, ErrNoCheckpoint):
		if cp.Seq != 1 {
			return fmt.Errorf("%w: first checkpoint has seq=%d", ErrCorruptCheckpoint, cp.Seq)
		}
	case err != nil:
		return err
	default:
		if cp.Seq != latest.Seq+1 {
			return fmt.Errorf("%w: seq=%d after latest=%d", ErrCorruptCheckpoint, cp.Seq, latest.Seq)
		}
	}

	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	return l.kv.Put(ctx, NamespaceCheckpoint, checkpointKey(cp.ThreadID, cp.Seq), payload)
}

// Latest returns the highest-sequence checkpoint for the thread, after
// verifying the sequence history is contiguous. A gap means data loss
// and fails with ErrCorruptCheckpoint rather than silently resetting.
func (l *CheckpointLog) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	seqs, err := l.sequence(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(seqs) == 0 {
		return nil, ErrNoCheckpoint
	}
	return l.load(ctx, threadID, seqs[len(seqs)-1])
}

// History returns the full ordered checkpoint history for replay/audit.
func (l *CheckpointLog) History(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	seqs, err := l.sequence(ctx, threadID)
	if err != nil {
		return nil, err
	}
	out := make([]*Checkpoint, 0, len(seqs))
	for _, seq := range seqs {
		cp, err := l.load(ctx, threadID, seq)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (l *CheckpointLog) sequence(ctx context.Context, threadID string) ([]uint64, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrInvalidThread
	}
	keys, err := l.kv.List(ctx, NamespaceCheckpoint, threadID+":")
	if err != nil {
		return nil, err
	}
	seqs := make([]uint64, 0, len(keys))
	for _, key := range keys {
		raw := strings.TrimPrefix(key, threadID+":")
		seq, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad checkpoint key %q", ErrCorruptCheckpoint, key)
		}
		seqs = append(seqs, seq)
	}
	for i, seq := range seqs {
		if seq != uint64(i)+1 {
			return nil, fmt.Errorf("%w: sequence gap at position %d (seq=%d)", ErrCorruptCheckpoint, i, seq)
		}
	}
	return seqs, nil
}

func (l *CheckpointLog) load(ctx context.Context, threadID string, seq uint64) (*Checkpoint, error) {
	payload, err := l.kv.Get(ctx, NamespaceCheckpoint, checkpointKey(threadID, seq))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: missing seq=%d", ErrCorruptCheckpoint, seq)
		}
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(payload, &cp); err != nil {
		return nil, fmt.Errorf("%w: decode seq=%d: %v", ErrCorruptCheckpoint, seq, err)
	}
	if cp.State == nil {
		return nil, fmt.Errorf("%w: seq=%d has no state", ErrCorruptCheckpoint, seq)
	}
	return &cp, nil
}
