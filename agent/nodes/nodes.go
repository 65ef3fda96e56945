// Package nodes holds the node functions of the conversation graph:
// verification, memory load, supervised routing, sub-agent invocation,
// and memory write-back. The supervisor service wires them onto the
// execution engine with their dependencies bound.
package nodes

import (
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/soundvault/support-agent/agent/contract"
	statex "github.com/soundvault/support-agent/agent/state"
)

const (
	NodeVerifyCustomer = "verify_customer"
	NodeLoadMemory     = "load_memory"
	NodeSupervise      = "supervise"
	NodeInvokeSubagent = "invoke_subagent"
	NodeCreateMemory   = "create_memory"
)

// withSystem prepends a system prompt to the persisted transcript for
// one completion call.
func withSystem(system string, st *statex.Conversation) []contractx.Message {
	msgs := make([]contractx.Message, 0, len(st.Messages)+1)
	msgs = append(msgs, contractx.Message{Role: contractx.RoleSystem, Content: system})
	msgs = append(msgs, st.Messages...)
	return msgs
}

// decodeModelJSON extracts the first JSON object from model text and
// unmarshals it. Models wrap objects in prose or code fences often
// enough that a strict json.Unmarshal on the raw text is not viable.
func decodeModelJSON(text string, out any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON object in model output", contractx.ErrSchemaViolation)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	return nil
}
