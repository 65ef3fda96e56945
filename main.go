package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/soundvault/support-agent/agent/agents/subagent"
	"github.com/soundvault/support-agent/agent/agents/supervisor"
	"github.com/soundvault/support-agent/agent/llm"
	memoryx "github.com/soundvault/support-agent/agent/memory"
	promptx "github.com/soundvault/support-agent/agent/prompt"
	statex "github.com/soundvault/support-agent/agent/state"
	"github.com/soundvault/support-agent/agent/tool"
	"github.com/soundvault/support-agent/pkg/chinook"
	"github.com/soundvault/support-agent/pkg/concerts"
	configx "github.com/soundvault/support-agent/pkg/config"
	_ "github.com/soundvault/support-agent/pkg/logger/autoload"
)

type AppConfig struct {
	CatalogDSN        string `envconfig:"CATALOG_DSN" split_words:"true"`
	StoreBackend      string `envconfig:"STORE_BACKEND" split_words:"true" default:"memory"`
	StepBudget        int    `envconfig:"STEP_BUDGET" split_words:"true" default:"6"`
	MaxVerifyAttempts int    `envconfig:"MAX_VERIFY_ATTEMPTS" split_words:"true" default:"3"`
	ForceSeedPrompts  bool   `envconfig:"FORCE_SEED_PROMPTS" split_words:"true" default:"false"`
}

var (
	flagThread  string
	flagNew     bool
	flagEnvFile string
)

var rootCmd = &cobra.Command{
	Use:           "support-agent",
	Short:         "Conversational customer support agent for the music store",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func init() {
	rootCmd.Flags().StringVarP(&flagThread, "thread", "t", "", "conversation thread id to open or resume")
	rootCmd.Flags().BoolVarP(&flagNew, "new", "n", false, "start a fresh thread even if --thread exists")
	rootCmd.Flags().StringVar(&flagEnvFile, "env", "", "path to a .env file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := configx.LoadEnvFile(flagEnvFile); err != nil {
		return err
	}
	appCfg, err := configx.New[AppConfig]("")
	if err != nil {
		return err
	}

	service, err := buildService(ctx, appCfg)
	if err != nil {
		return err
	}

	threadID := strings.TrimSpace(flagThread)
	if threadID == "" || flagNew {
		threadID = uuid.NewString()
	}

	return repl(ctx, service, threadID)
}

func buildService(ctx context.Context, appCfg *AppConfig) (*supervisor.Service, error) {
	kv, err := openKV(ctx, appCfg.StoreBackend)
	if err != nil {
		return nil, err
	}

	prompts := promptx.NewStore(kv)
	if err := prompts.Seed(ctx, appCfg.ForceSeedPrompts); err != nil {
		return nil, fmt.Errorf("seed prompts: %w", err)
	}

	catalog, err := chinook.Open(appCfg.CatalogDSN)
	if err != nil {
		return nil, err
	}
	if err := catalog.CreateSchema(ctx); err != nil {
		return nil, err
	}
	if err := catalog.Seed(ctx); err != nil {
		return nil, err
	}

	events := concerts.New(nil)
	if err := events.Load(ctx); err != nil {
		return nil, err
	}

	llmCfg, err := configx.New[llm.Config]("OPENROUTER")
	if err != nil {
		return nil, err
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, err
	}
	supervisorLLM, err := llm.NewClient(llmCfg.OpenRouterFor(llm.RoleSupervisor))
	if err != nil {
		return nil, err
	}
	subagentLLM, err := llm.NewClient(llmCfg.OpenRouterFor(llm.RoleSubagent))
	if err != nil {
		return nil, err
	}
	memoryLLM, err := llm.NewClient(llmCfg.OpenRouterFor(llm.RoleMemory))
	if err != nil {
		return nil, err
	}

	gateway, err := tool.NewGateway(catalog, events)
	if err != nil {
		return nil, err
	}
	shell, err := subagent.New(subagentLLM, prompts, gateway)
	if err != nil {
		return nil, err
	}

	return supervisor.New(statex.NewCheckpointLog(kv), supervisor.Deps{
		Supervisor: supervisorLLM,
		Memory:     memoryLLM,
		Directory:  catalog,
		Profiles:   memoryx.NewManager(kv),
		Prompts:    prompts,
		Shell:      shell,
	}, supervisor.Config{
		StepBudget:        appCfg.StepBudget,
		MaxVerifyAttempts: appCfg.MaxVerifyAttempts,
	})
}

func openKV(ctx context.Context, backend string) (statex.KV, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "memory":
		log.Warn().Msg("using in-memory state store, conversations will not survive a restart")
		return statex.NewMemoryKV(), nil
	case "redis":
		if err := configx.Require("REDIS_URL", "REDIS_TOKEN"); err != nil {
			return nil, err
		}
		cfg, err := configx.New[statex.RedisRESTConfig]("REDIS")
		if err != nil {
			return nil, err
		}
		store, err := statex.NewRedisRESTStore(*cfg)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("state store unreachable: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func repl(ctx context.Context, service *supervisor.Service, threadID string) error {
	out := os.Stdout
	fmt.Fprintln(out, "SoundVault support. Type 'exit' to leave, 'clear' for a new thread, 'thread' for the thread id.")

	_, pendingPrompt, suspended, pendingErr := service.Pending(ctx, threadID)
	if cp, err := service.Latest(ctx, threadID); err == nil && cp != nil {
		fmt.Fprintf(out, "Resuming thread %s (%d messages so far).\n", threadID, len(cp.State.Messages))
		if last, ok := cp.State.LastAgentMessage(); ok && !suspended {
			fmt.Fprintf(out, "agent> %s\n", last)
		}
	} else {
		fmt.Fprintf(out, "Thread %s.\n", threadID)
	}
	if pendingErr == nil && suspended {
		fmt.Fprintf(out, "agent> %s\n", pendingPrompt)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(text) {
		case "":
			continue
		case "exit", "quit", "q":
			fmt.Fprintf(out, "Conversation saved. Resume it later with --thread %s.\n", threadID)
			return nil
		case "clear":
			threadID = uuid.NewString()
			fmt.Fprintf(out, "Started thread %s.\n", threadID)
			continue
		case "thread":
			fmt.Fprintln(out, threadID)
			continue
		}

		outcome, err := service.Handle(ctx, threadID, text)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			log.Error().Err(err).Str("thread_id", threadID).Msg("turn failed")
			fmt.Fprintln(out, "agent> Something went wrong on my side. Please try that again.")
			continue
		}

		if outcome.Suspended {
			fmt.Fprintf(out, "agent> %s\n", outcome.Prompt)
			continue
		}
		if outcome.Reply != "" {
			fmt.Fprintf(out, "agent> %s\n", outcome.Reply)
		}
	}
	return scanner.Err()
}
