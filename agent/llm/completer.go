// Package llm adapts the OpenAI SDK to the completion interface the
// conversation graph programs against.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/soundvault/support-agent/agent/contract"
	openrouterx "github.com/soundvault/support-agent/pkg/openrouter"
)

// Client is a contractx.Completer bound to one model configuration.
type Client struct {
	api         *openaisdk.Client
	model       string
	temperature float64
	maxTokens   int
}

var _ contractx.Completer = (*Client)(nil)

// NewClient builds a completer for one agent role's settings.
func NewClient(cfg openrouterx.Config) (*Client, error) {
	api := openrouterx.NewClient(cfg)
	if api == nil {
		return nil, fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("%w: model name is required", contractx.ErrValidation)
	}
	return &Client{
		api:         api,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxCompletionToken,
	}, nil
}

func (c *Client) Complete(ctx context.Context, messages []contractx.Message, tools []contractx.ToolSpec) (contractx.Completion, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(c.model),
		Messages:    encodeMessages(messages),
		Temperature: openaisdk.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(c.maxTokens))
	}
	for _, spec := range tools {
		params.Tools = append(params.Tools, openaisdk.ChatCompletionToolParam{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openaisdk.String(spec.Description),
				Parameters:  openaisdk.FunctionParameters(spec.Parameters),
			},
		})
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return contractx.Completion{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return contractx.Completion{}, fmt.Errorf("%w: empty choices", contractx.ErrModelInvoke)
	}
	return decodeChoice(resp.Choices[0])
}

func encodeMessages(messages []contractx.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case contractx.RoleSystem:
			out = append(out, openaisdk.SystemMessage(msg.Content))
		case contractx.RoleUser:
			out = append(out, openaisdk.UserMessage(msg.Content))
		case contractx.RoleTool:
			out = append(out, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		case contractx.RoleAgent:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openaisdk.AssistantMessage(msg.Content))
				continue
			}
			assistant := openaisdk.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openaisdk.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Args)
				if err != nil {
					args = []byte("{}")
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openaisdk.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return out
}

func decodeChoice(choice openaisdk.ChatCompletionChoice) (contractx.Completion, error) {
	completion := contractx.Completion{Text: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		name := strings.TrimSpace(tc.Function.Name)
		if name == "" {
			return contractx.Completion{}, fmt.Errorf("%w: tool call without a name", contractx.ErrSchemaViolation)
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return contractx.Completion{}, fmt.Errorf("%w: tool call %s arguments: %v", contractx.ErrSchemaViolation, name, err)
			}
		}
		completion.ToolCalls = append(completion.ToolCalls, contractx.ToolCall{
			ID:   tc.ID,
			Name: name,
			Args: args,
		})
	}
	if completion.Text == "" && len(completion.ToolCalls) == 0 {
		return contractx.Completion{}, errors.New("model returned neither text nor tool calls")
	}
	return completion, nil
}
