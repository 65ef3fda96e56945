// Package prompt serves the system prompts used by the supervisor, the
// sub-agents, and the memory extraction step.
//
// Defaults are embedded in the binary and seeded into the persistence
// layer at startup (missing keys only, unless forced). The store is the
// runtime source of truth: prompts are fetched at node-entry time, so
// an operator can edit them live without redeploying.
package prompt

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/soundvault/support-agent/agent/contract"
	statex "github.com/soundvault/support-agent/agent/state"
)

const (
	NameSupervisor   = "supervisor_system_prompt"
	NameMusic        = "music_subagent_prompt"
	NameInvoice      = "invoice_subagent_prompt"
	NameConcert      = "concert_subagent_prompt"
	NameCreateMemory = "create_memory_prompt"
)

var (
	//go:embed template/supervisor.txt
	supervisorRaw string

	//go:embed template/music.txt
	musicRaw string

	//go:embed template/invoice.txt
	invoiceRaw string

	//go:embed template/concert.txt
	concertRaw string

	//go:embed template/create_memory.txt
	createMemoryRaw string
)

func defaults() map[string]string {
	return map[string]string{
		NameSupervisor:   strings.TrimSpace(supervisorRaw),
		NameMusic:        strings.TrimSpace(musicRaw),
		NameInvoice:      strings.TrimSpace(invoiceRaw),
		NameConcert:      strings.TrimSpace(concertRaw),
		NameCreateMemory: strings.TrimSpace(createMemoryRaw),
	}
}

// ForTag maps a sub-agent tag to its prompt name.
func ForTag(tag contractx.SubagentTag) string {
	switch tag {
	case contractx.TagMusic:
		return NameMusic
	case contractx.TagInvoice:
		return NameInvoice
	case contractx.TagConcert:
		return NameConcert
	}
	return ""
}

// Store implements contract.PromptStore over the namespaced KV.
type Store struct {
	kv statex.KV
}

func NewStore(kv statex.KV) *Store {
	return &Store{kv: kv}
}

var _ contractx.PromptStore = (*Store)(nil)

// Seed writes embedded defaults into the KV. With force=false only
// missing prompts are written, preserving live edits.
func (s *Store) Seed(ctx context.Context, force bool) error {
	for name, content := range defaults() {
		if !force {
			if _, err := s.kv.Get(ctx, statex.NamespacePrompt, name); err == nil {
				continue
			} else if !errors.Is(err, statex.ErrKeyNotFound) {
				return err
			}
		}
		if err := s.kv.Put(ctx, statex.NamespacePrompt, name, []byte(content)); err != nil {
			return fmt.Errorf("seed prompt %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name string) (string, error) {
	payload, err := s.kv.Get(ctx, statex.NamespacePrompt, name)
	if err != nil {
		if errors.Is(err, statex.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
		}
		return "", err
	}
	return string(payload), nil
}
