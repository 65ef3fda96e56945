// Package engine is the generic scheduler for the conversation graph.
//
// It walks named nodes, writes a checkpoint after every completed node,
// and implements the suspend-for-input / resume protocol. The "next
// node" pointer lives inside every checkpoint, so a process restart
// re-enters exactly where the last durable write left off.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	statex "github.com/soundvault/support-agent/agent/state"
)

// NodeHumanInput is the reserved node a suspended thread re-enters on
// resume. Registered topologies must provide it.
const NodeHumanInput = "human_input"

var (
	ErrUnknownNode   = errors.New("unknown graph node")
	ErrAwaitingInput = errors.New("thread is suspended awaiting human input")
	ErrNotSuspended  = errors.New("thread is not suspended")
	ErrNoEntryNode   = errors.New("entry node is not set")
)

// Directive is a node's verdict: continue to Next, suspend with Prompt,
// or end the turn.
type Directive struct {
	Next    string
	Prompt  string // non-empty requests suspension; resume re-enters at NodeHumanInput
	End     bool
	Suspend bool
}

func Goto(next string) Directive { return Directive{Next: next} }

func SuspendWith(prompt string) Directive { return Directive{Prompt: prompt, Suspend: true} }

func End() Directive { return Directive{End: true} }

// NodeFunc executes one node against the live conversation state.
// Nodes must be safe to re-run: a crash before the follow-up checkpoint
// re-executes them from the prior durable state.
type NodeFunc func(ctx context.Context, st *statex.Conversation) (Directive, error)

// Outcome is the result of one Run or Resume call.
type Outcome struct {
	Suspended bool
	Prompt    string            // shown to the human while suspended
	Token     statex.ResumeToken // valid only for the matching Resume call
	Reply     string            // final agent reply on completion
	State     *statex.Conversation
}

type Engine struct {
	nodes       map[string]NodeFunc
	entry       string
	checkpoints *statex.CheckpointLog

	// beginTurn runs once at the start of each fresh turn (not on
	// resume), e.g. to reset the per-turn step budget.
	beginTurn func(st *statex.Conversation)

	now func() time.Time
}

type Option func(*Engine)

func WithBeginTurn(fn func(st *statex.Conversation)) Option {
	return func(e *Engine) { e.beginTurn = fn }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(checkpoints *statex.CheckpointLog, opts ...Option) (*Engine, error) {
	if checkpoints == nil {
		return nil, errors.New("checkpoint log is required")
	}
	e := &Engine{
		nodes:       make(map[string]NodeFunc, 8),
		checkpoints: checkpoints,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

func (e *Engine) AddNode(name string, fn NodeFunc) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("node name is empty")
	}
	if fn == nil {
		return fmt.Errorf("node %s has nil func", name)
	}
	if _, exists := e.nodes[name]; exists {
		return fmt.Errorf("node %s already registered", name)
	}
	e.nodes[name] = fn
	return nil
}

func (e *Engine) SetEntry(name string) error {
	if _, ok := e.nodes[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	e.entry = name
	return nil
}

// Pending returns the resume token and prompt of a suspended thread.
func (e *Engine) Pending(ctx context.Context, threadID string) (statex.ResumeToken, string, bool, error) {
	cp, err := e.checkpoints.Latest(ctx, threadID)
	if err != nil {
		if errors.Is(err, statex.ErrNoCheckpoint) {
			return statex.ResumeToken{}, "", false, nil
		}
		return statex.ResumeToken{}, "", false, err
	}
	if !cp.Awaiting {
		return statex.ResumeToken{}, "", false, nil
	}
	return statex.ResumeToken{ThreadID: threadID, Seq: cp.Seq}, cp.Prompt, true, nil
}

// Latest exposes the thread's latest checkpoint, for CLI banners.
func (e *Engine) Latest(ctx context.Context, threadID string) (*statex.Checkpoint, error) {
	return e.checkpoints.Latest(ctx, threadID)
}

// Run starts a new turn: it loads the thread's latest checkpoint (or a
// fresh state), appends the user input, and walks the graph from the
// entry node. A suspended thread must be resumed instead.
func (e *Engine) Run(ctx context.Context, threadID string, userText string) (Outcome, error) {
	if e.entry == "" {
		return Outcome{}, ErrNoEntryNode
	}
	if strings.TrimSpace(threadID) == "" {
		return Outcome{}, statex.ErrInvalidThread
	}

	var st *statex.Conversation
	var seq uint64

	cp, err := e.checkpoints.Latest(ctx, threadID)
	switch {
	case errors.Is(err, statex.ErrNoCheckpoint):
		st = statex.NewConversation(threadID, e.now())
	case err != nil:
		return Outcome{}, err
	case cp.Awaiting:
		return Outcome{}, fmt.Errorf("%w: thread=%s", ErrAwaitingInput, threadID)
	default:
		st = cp.State.Clone()
		seq = cp.Seq
	}

	if e.beginTurn != nil {
		e.beginTurn(st)
	}
	st.AppendUser(userText, e.now())

	log.Debug().Str("thread_id", threadID).Uint64("seq", seq).Msg("turn started")
	return e.walk(ctx, st, e.entry, seq)
}

// Resume re-enters a suspended thread at the human input node with the
// provided text injected as the next user message. The token must match
// the thread's latest checkpoint; a stale token is rejected without any
// state mutation.
func (e *Engine) Resume(ctx context.Context, token statex.ResumeToken, userText string) (Outcome, error) {
	cp, err := e.checkpoints.Latest(ctx, token.ThreadID)
	if err != nil {
		if errors.Is(err, statex.ErrNoCheckpoint) {
			return Outcome{}, fmt.Errorf("%w: thread=%s has no checkpoints", statex.ErrStaleResume, token.ThreadID)
		}
		return Outcome{}, err
	}
	if !cp.Awaiting {
		return Outcome{}, fmt.Errorf("%w: thread=%s", ErrNotSuspended, token.ThreadID)
	}
	if token.Seq != cp.Seq {
		return Outcome{}, fmt.Errorf("%w: token seq=%d, latest seq=%d", statex.ErrStaleResume, token.Seq, cp.Seq)
	}

	st := cp.State.Clone()
	st.AppendUser(userText, e.now())

	log.Debug().Str("thread_id", token.ThreadID).Uint64("seq", cp.Seq).Msg("turn resumed")
	return e.walk(ctx, st, cp.Next, cp.Seq)
}

// walk executes nodes until suspension or end, committing a checkpoint
// after each node. A node error aborts without a checkpoint, leaving
// the prior one authoritative so retry re-executes the failed node.
func (e *Engine) walk(ctx context.Context, st *statex.Conversation, next string, seq uint64) (Outcome, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		fn, ok := e.nodes[next]
		if !ok {
			return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownNode, next)
		}

		directive, err := fn(ctx, st)
		if err != nil {
			return Outcome{}, fmt.Errorf("node %s: %w", next, err)
		}
		st.Touch(e.now())
		if err := st.Validate(); err != nil {
			return Outcome{}, fmt.Errorf("node %s left invalid state: %w", next, err)
		}

		seq++
		cp := &statex.Checkpoint{
			ThreadID: st.ThreadID,
			Seq:      seq,
			State:    st.Clone(),
			SavedAt:  e.now().UTC(),
		}

		switch {
		case directive.Suspend:
			cp.Next = NodeHumanInput
			cp.Awaiting = true
			cp.Prompt = directive.Prompt
			if err := e.checkpoints.Append(ctx, cp); err != nil {
				return Outcome{}, err
			}
			return Outcome{
				Suspended: true,
				Prompt:    directive.Prompt,
				Token:     statex.ResumeToken{ThreadID: st.ThreadID, Seq: seq},
				State:     st,
			}, nil

		case directive.End:
			cp.Done = true
			if err := e.checkpoints.Append(ctx, cp); err != nil {
				return Outcome{}, err
			}
			reply, _ := st.LastAgentMessage()
			log.Debug().Str("thread_id", st.ThreadID).Uint64("seq", seq).Msg("turn completed")
			return Outcome{Reply: reply, State: st}, nil

		default:
			if strings.TrimSpace(directive.Next) == "" {
				return Outcome{}, fmt.Errorf("node %s returned no next node", next)
			}
			cp.Next = directive.Next
			if err := e.checkpoints.Append(ctx, cp); err != nil {
				return Outcome{}, err
			}
			next = directive.Next
		}
	}
}
