package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/soundvault/support-agent/agent/contract"
)

var (
	ErrNilConversation = errors.New("conversation state is nil")
	ErrInvalidThread   = errors.New("thread id is empty")
)

// Conversation is the mutable record threaded through the graph for one
// turn and snapshotted into every checkpoint.
type Conversation struct {
	ThreadID string              `json:"thread_id"`
	Messages []contractx.Message `json:"messages,omitempty"`

	// CustomerID is zero until the verification gate succeeds and is
	// immutable afterwards. No sub-agent may run while it is zero.
	CustomerID int64 `json:"customer_id,omitempty"`

	UserMemory contractx.UserMemory `json:"user_memory,omitempty"`

	// PendingRoute names the sub-agent selected for the current step;
	// cleared after each invocation.
	PendingRoute contractx.SubagentTag `json:"pending_route,omitempty"`

	// RemainingSteps is the per-turn tool call budget.
	RemainingSteps int `json:"remaining_steps"`

	// VerifyAttempts counts failed verification rounds, for the
	// optional defensive max-attempts guard.
	VerifyAttempts int `json:"verify_attempts,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewConversation(threadID string, now time.Time) *Conversation {
	return &Conversation{
		ThreadID:  threadID,
		UpdatedAt: now.UTC(),
	}
}

func (c *Conversation) Validate() error {
	if c == nil {
		return ErrNilConversation
	}
	if strings.TrimSpace(c.ThreadID) == "" {
		return ErrInvalidThread
	}
	if c.RemainingSteps < 0 {
		return fmt.Errorf("%w: remaining steps is negative", contractx.ErrValidation)
	}
	return nil
}

func (c *Conversation) Touch(now time.Time) {
	c.UpdatedAt = now.UTC()
}

func (c *Conversation) Append(msg contractx.Message) {
	c.Messages = append(c.Messages, msg)
}

func (c *Conversation) AppendUser(text string, now time.Time) {
	c.Append(contractx.Message{Role: contractx.RoleUser, Content: text, At: now.UTC()})
}

func (c *Conversation) AppendAgent(text string, now time.Time) {
	c.Append(contractx.Message{Role: contractx.RoleAgent, Content: text, At: now.UTC()})
}

// LastUserMessage returns the most recent user message content.
func (c *Conversation) LastUserMessage() (string, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == contractx.RoleUser {
			return c.Messages[i].Content, true
		}
	}
	return "", false
}

// LastAgentMessage returns the most recent agent message content.
func (c *Conversation) LastAgentMessage() (string, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == contractx.RoleAgent && c.Messages[i].Content != "" {
			return c.Messages[i].Content, true
		}
	}
	return "", false
}

// Verified reports whether the verification gate has completed.
func (c *Conversation) Verified() bool {
	return c != nil && c.CustomerID > 0
}

// Clone returns a deep copy, so checkpoints never alias live state.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]contractx.Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	cp.UserMemory.MusicPreferences = append([]string(nil), c.UserMemory.MusicPreferences...)
	if c.UserMemory.MaxConcertBudget != nil {
		budget := *c.UserMemory.MaxConcertBudget
		cp.UserMemory.MaxConcertBudget = &budget
	}
	return &cp
}
