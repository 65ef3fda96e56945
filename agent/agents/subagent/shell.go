// Package subagent runs the specialist agents behind the supervisor:
// a single shell drives the tag-specific prompt, the completion
// service, and the tool gateway in a bounded act-observe loop.
package subagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	contractx "github.com/soundvault/support-agent/agent/contract"
	promptx "github.com/soundvault/support-agent/agent/prompt"
	statex "github.com/soundvault/support-agent/agent/state"
	logx "github.com/soundvault/support-agent/pkg/logger"
)

const (
	defaultMaxToolRounds = 4

	degradedReply = "I couldn't look that up right now. Could you ask me again in a moment?"
)

type Option func(*Shell)

// WithMaxToolRounds caps how many completion rounds a single
// invocation may spend before the shell forces a text answer.
func WithMaxToolRounds(n int) Option {
	return func(s *Shell) {
		if n > 0 {
			s.maxToolRounds = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Shell) { s.now = now }
}

// Shell executes one sub-agent turn: system prompt, transcript, then
// alternating tool calls and observations until the model produces a
// final reply or the budget runs out.
type Shell struct {
	completer contractx.Completer
	prompts   contractx.PromptStore
	tools     contractx.ToolGateway

	maxToolRounds int
	now           func() time.Time
}

func New(completer contractx.Completer, prompts contractx.PromptStore, tools contractx.ToolGateway, opts ...Option) (*Shell, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if prompts == nil {
		return nil, errors.New("prompt store is required")
	}
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}

	s := &Shell{
		completer:     completer,
		prompts:       prompts,
		tools:         tools,
		maxToolRounds: defaultMaxToolRounds,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Invoke runs the tagged sub-agent against the thread. It returns the
// reply text and the number of budget steps consumed (one per tool
// call). budget <= 0 answers degraded without touching the model, so a
// drained supervise loop still ends with a coherent reply.
func (s *Shell) Invoke(ctx context.Context, tag contractx.SubagentTag, st *statex.Conversation, budget int) (string, int, error) {
	if !contractx.IsValidTag(tag) {
		return "", 0, fmt.Errorf("%w: unknown subagent tag %q", contractx.ErrValidation, tag)
	}
	if budget <= 0 {
		return degradedReply, 0, nil
	}

	system, err := s.prompts.Get(ctx, promptx.ForTag(tag))
	if err != nil {
		return "", 0, err
	}
	system += fmt.Sprintf("\n\nVerified customer id: %d", st.CustomerID)

	msgs := make([]contractx.Message, 0, len(st.Messages)+1)
	msgs = append(msgs, contractx.Message{Role: contractx.RoleSystem, Content: system})
	msgs = append(msgs, st.Messages...)

	specs := s.tools.Specs(tag)
	used := 0

	for round := 0; round < s.maxToolRounds; round++ {
		offered := specs
		if used >= budget {
			// Out of steps: force a text answer from what we have.
			offered = nil
		}

		completion, err := s.completer.Complete(ctx, msgs, offered)
		if err != nil {
			lg := logx.Component("subagent")
			lg.Warn().Err(err).Str("subagent", string(tag)).Str("thread_id", st.ThreadID).Msg("completion failed")
			return degradedReply, used, nil
		}

		if len(completion.ToolCalls) == 0 || offered == nil {
			return completion.Text, used, nil
		}

		call := contractx.Message{
			Role:      contractx.RoleAgent,
			Name:      string(tag),
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
			At:        s.now(),
		}
		msgs = append(msgs, call)
		st.Append(call)

		// Every call in the batch gets an observation. A tool call left
		// unanswered in the transcript fails every later completion on
		// the thread.
		for _, tc := range completion.ToolCalls {
			var content string
			if used < budget {
				result := s.tools.Execute(ctx, tag, st.CustomerID, tc)
				used++
				content = encodeResult(result)
			} else {
				content = "tool error: step budget exhausted"
			}
			obs := contractx.Message{
				Role:       contractx.RoleTool,
				Name:       tc.Name,
				ToolCallID: tc.ID,
				Content:    content,
				At:         s.now(),
			}
			msgs = append(msgs, obs)
			st.Append(obs)
		}
	}

	// The model kept asking for tools past the round cap. One last
	// call without tools yields whatever answer it can give.
	completion, err := s.completer.Complete(ctx, msgs, nil)
	if err != nil {
		lg := logx.Component("subagent")
		lg.Warn().Err(err).Str("subagent", string(tag)).Str("thread_id", st.ThreadID).Msg("final completion failed")
		return degradedReply, used, nil
	}
	return completion.Text, used, nil
}

// encodeResult renders a tool observation for the model. Failures
// surface as plain text so the model can recover or apologize.
func encodeResult(result contractx.ToolResult) string {
	if result.Error != "" {
		return "tool error: " + result.Error
	}
	payload, err := json.Marshal(result.Result)
	if err != nil {
		return fmt.Sprintf("%v", result.Result)
	}
	return string(payload)
}
