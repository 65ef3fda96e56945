// Package supervisor assembles the conversation graph: the
// verification gate, memory hydration, supervised routing to the
// specialist sub-agents, and memory write-back, all running on the
// checkpointing engine.
package supervisor

import (
	"context"
	"errors"
	"time"

	contractx "github.com/soundvault/support-agent/agent/contract"
	enginex "github.com/soundvault/support-agent/agent/engine"
	nodesx "github.com/soundvault/support-agent/agent/nodes"
	statex "github.com/soundvault/support-agent/agent/state"
)

const (
	defaultStepBudget        = 6
	defaultMaxVerifyAttempts = 3
)

type Config struct {
	// StepBudget is how many sub-agent steps one turn may spend.
	StepBudget int
	// MaxVerifyAttempts bounds the verification loop; 0 keeps asking
	// forever.
	MaxVerifyAttempts int
}

func (c Config) withDefaults() Config {
	if c.StepBudget <= 0 {
		c.StepBudget = defaultStepBudget
	}
	if c.MaxVerifyAttempts < 0 {
		c.MaxVerifyAttempts = defaultMaxVerifyAttempts
	}
	return c
}

// Deps are the bound collaborators of the graph nodes.
type Deps struct {
	// Supervisor classifies and routes; Memory extracts profile
	// deltas. They may be the same completer.
	Supervisor contractx.Completer
	Memory     contractx.Completer

	Directory contractx.CustomerDirectory
	Profiles  contractx.MemoryStore
	Prompts   contractx.PromptStore
	Shell     nodesx.Subagents
}

func (d Deps) validate() error {
	if d.Supervisor == nil {
		return errors.New("supervisor completer is required")
	}
	if d.Memory == nil {
		return errors.New("memory completer is required")
	}
	if d.Directory == nil {
		return errors.New("customer directory is required")
	}
	if d.Profiles == nil {
		return errors.New("profile store is required")
	}
	if d.Prompts == nil {
		return errors.New("prompt store is required")
	}
	if d.Shell == nil {
		return errors.New("subagent shell is required")
	}
	return nil
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service drives whole conversation turns against the durable
// checkpoint log.
type Service struct {
	engine *enginex.Engine
	now    func() time.Time
}

func New(checkpoints *statex.CheckpointLog, deps Deps, cfg Config, opts ...Option) (*Service, error) {
	if checkpoints == nil {
		return nil, errors.New("checkpoint log is required")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	s := &Service{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	engine, err := enginex.New(checkpoints,
		enginex.WithClock(s.now),
		enginex.WithBeginTurn(func(st *statex.Conversation) {
			st.RemainingSteps = cfg.StepBudget
		}),
	)
	if err != nil {
		return nil, err
	}

	nodes := map[string]enginex.NodeFunc{
		nodesx.NodeVerifyCustomer: func(ctx context.Context, st *statex.Conversation) (enginex.Directive, error) {
			return nodesx.VerifyCustomer(ctx, st, deps.Directory, cfg.MaxVerifyAttempts, s.now)
		},
		enginex.NodeHumanInput: nodesx.HumanInput,
		nodesx.NodeLoadMemory: func(ctx context.Context, st *statex.Conversation) (enginex.Directive, error) {
			return nodesx.LoadMemory(ctx, st, deps.Profiles)
		},
		nodesx.NodeSupervise: func(ctx context.Context, st *statex.Conversation) (enginex.Directive, error) {
			return nodesx.Supervise(ctx, st, deps.Supervisor, deps.Prompts, s.now)
		},
		nodesx.NodeInvokeSubagent: func(ctx context.Context, st *statex.Conversation) (enginex.Directive, error) {
			return nodesx.InvokeSubagent(ctx, st, deps.Shell, s.now)
		},
		nodesx.NodeCreateMemory: func(ctx context.Context, st *statex.Conversation) (enginex.Directive, error) {
			return nodesx.CreateMemory(ctx, st, deps.Memory, deps.Prompts, deps.Profiles)
		},
	}
	for name, fn := range nodes {
		if err := engine.AddNode(name, fn); err != nil {
			return nil, err
		}
	}
	if err := engine.SetEntry(nodesx.NodeVerifyCustomer); err != nil {
		return nil, err
	}

	s.engine = engine
	return s, nil
}

// Handle runs one turn. A thread suspended for human input consumes
// the text as the answer to its pending prompt; any other thread
// starts a fresh turn.
func (s *Service) Handle(ctx context.Context, threadID string, text string) (enginex.Outcome, error) {
	token, _, suspended, err := s.engine.Pending(ctx, threadID)
	if err != nil {
		return enginex.Outcome{}, err
	}
	if suspended {
		return s.engine.Resume(ctx, token, text)
	}
	return s.engine.Run(ctx, threadID, text)
}

// Pending reports whether the thread is suspended and with what
// prompt.
func (s *Service) Pending(ctx context.Context, threadID string) (statex.ResumeToken, string, bool, error) {
	return s.engine.Pending(ctx, threadID)
}

// Latest returns the thread's most recent checkpoint.
func (s *Service) Latest(ctx context.Context, threadID string) (*statex.Checkpoint, error) {
	return s.engine.Latest(ctx, threadID)
}
