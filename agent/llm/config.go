package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/soundvault/support-agent/agent/contract"
	openrouterx "github.com/soundvault/support-agent/pkg/openrouter"
)

// AgentRole selects which model settings a completion client uses.
type AgentRole string

const (
	RoleSupervisor AgentRole = "supervisor"
	RoleSubagent   AgentRole = "subagent"
	RoleMemory     AgentRole = "memory"
)

// Config carries the model settings for every agent role. The base
// model applies everywhere; per-role overrides let the supervisor run
// a stronger model than the extraction path.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	SupervisorModel       string  `envconfig:"SUPERVISOR_MODEL" split_words:"true"`
	SubagentModel         string  `envconfig:"SUBAGENT_MODEL" split_words:"true"`
	MemoryModel           string  `envconfig:"MEMORY_MODEL" split_words:"true"`
	SupervisorTemperature float64 `envconfig:"SUPERVISOR_TEMPERATURE" split_words:"true" default:"-1"`
	SubagentTemperature   float64 `envconfig:"SUBAGENT_TEMPERATURE" split_words:"true" default:"-1"`
	MemoryTemperature     float64 `envconfig:"MEMORY_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the effective connection settings for a role,
// applying per-role model and temperature overrides over the base.
func (c Config) OpenRouterFor(role AgentRole) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch role {
	case RoleSupervisor:
		if v := strings.TrimSpace(c.SupervisorModel); v != "" {
			modelName = v
		}
		if c.SupervisorTemperature >= 0 {
			temp = c.SupervisorTemperature
		}
	case RoleSubagent:
		if v := strings.TrimSpace(c.SubagentModel); v != "" {
			modelName = v
		}
		if c.SubagentTemperature >= 0 {
			temp = c.SubagentTemperature
		}
	case RoleMemory:
		if v := strings.TrimSpace(c.MemoryModel); v != "" {
			modelName = v
		}
		if c.MemoryTemperature >= 0 {
			temp = c.MemoryTemperature
		}
	}

	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: c.MaxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
