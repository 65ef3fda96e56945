package supervisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/soundvault/support-agent/agent/contract"
	enginex "github.com/soundvault/support-agent/agent/engine"
	memoryx "github.com/soundvault/support-agent/agent/memory"
	nodesx "github.com/soundvault/support-agent/agent/nodes"
	promptx "github.com/soundvault/support-agent/agent/prompt"
	statex "github.com/soundvault/support-agent/agent/state"
)

var testClock = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

type scriptCompleter struct {
	replies []string
	calls   int
}

func (s *scriptCompleter) Complete(ctx context.Context, msgs []contractx.Message, tools []contractx.ToolSpec) (contractx.Completion, error) {
	s.calls++
	if len(s.replies) == 0 {
		return contractx.Completion{}, errors.New("scriptCompleter: no reply scripted")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return contractx.Completion{Text: reply}, nil
}

type fakeDirectory struct {
	customers map[string]int64
}

func (f *fakeDirectory) FindCustomer(ctx context.Context, candidate string) (int64, error) {
	if id, ok := f.customers[candidate]; ok {
		return id, nil
	}
	return 0, contractx.ErrCustomerNotFound
}

type fakeShell struct {
	replies []string
	used    int
	calls   int
	tags    []contractx.SubagentTag
}

func (f *fakeShell) Invoke(ctx context.Context, tag contractx.SubagentTag, st *statex.Conversation, budget int) (string, int, error) {
	f.calls++
	f.tags = append(f.tags, tag)
	if len(f.replies) == 0 {
		return "", 0, errors.New("fakeShell: no reply scripted")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, f.used, nil
}

type fixture struct {
	service  *Service
	profiles *memoryx.Manager
	shell    *fakeShell
}

func newFixture(t *testing.T, supervisor *scriptCompleter, memory *scriptCompleter, shell *fakeShell) *fixture {
	t.Helper()
	ctx := context.Background()

	kv := statex.NewMemoryKV()
	prompts := promptx.NewStore(kv)
	if err := prompts.Seed(ctx, false); err != nil {
		t.Fatalf("seed prompts: %v", err)
	}
	profiles := memoryx.NewManager(kv)

	service, err := New(statex.NewCheckpointLog(kv), Deps{
		Supervisor: supervisor,
		Memory:     memory,
		Directory:  &fakeDirectory{customers: map[string]int64{"1": 1, "frantisekw@jetbrains.com": 3}},
		Profiles:   profiles,
		Prompts:    prompts,
		Shell:      shell,
	}, Config{StepBudget: 3, MaxVerifyAttempts: 3}, WithClock(testClock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{service: service, profiles: profiles, shell: shell}
}

func TestTurnSuspendsForVerificationAndResumes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	supervisor := &scriptCompleter{replies: []string{
		`{"action":"delegate","scores":{"invoice":0.9}}`,
		`{"action":"respond","reply":"That was everything on your account."}`,
	}}
	memory := &scriptCompleter{replies: []string{`{}`}}
	fx := newFixture(t, supervisor, memory, &fakeShell{replies: []string{"You have 2 invoices, the latest from February."}})

	// First message from an unverified thread suspends with the
	// verification prompt.
	out, err := fx.service.Handle(ctx, "t1", "What's on my latest invoice?")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !out.Suspended || out.Prompt != nodesx.VerifyPrompt {
		t.Fatalf("expected verification suspension, got %+v", out)
	}

	// The identity answer resumes the same thread and the turn runs
	// to completion through the sub-agent.
	out, err = fx.service.Handle(ctx, "t1", "My customer ID is 1.")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if out.Suspended {
		t.Fatalf("turn still suspended: %+v", out)
	}
	if out.Reply != "That was everything on your account." {
		t.Fatalf("reply = %q", out.Reply)
	}
	if fx.shell.calls != 1 || fx.shell.tags[0] != contractx.TagInvoice {
		t.Fatalf("shell calls = %d tags = %v", fx.shell.calls, fx.shell.tags)
	}

	cp, err := fx.service.Latest(ctx, "t1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !cp.Done || cp.State.CustomerID != 1 {
		t.Fatalf("final checkpoint = %+v", cp)
	}
}

func TestVerifiedThreadSkipsGateNextTurn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	supervisor := &scriptCompleter{replies: []string{
		`{"action":"respond","reply":"Hello Luis, how can I help?"}`,
		`{"action":"respond","reply":"We're open every day."}`,
	}}
	memory := &scriptCompleter{replies: []string{`{}`, `{}`}}
	fx := newFixture(t, supervisor, memory, &fakeShell{})

	if _, err := fx.service.Handle(ctx, "t1", "Hi, my customer ID is 1."); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	out, err := fx.service.Handle(ctx, "t1", "When are you open?")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if out.Suspended {
		t.Fatal("verified thread must not re-suspend for identity")
	}
	if out.Reply != "We're open every day." {
		t.Fatalf("reply = %q", out.Reply)
	}
}

func TestMemoryPersistsAcrossTurns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	supervisor := &scriptCompleter{replies: []string{
		`{"action":"respond","reply":"Noted, jazz it is."}`,
		`{"action":"respond","reply":"Anything else?"}`,
	}}
	memory := &scriptCompleter{replies: []string{
		`{"music_preferences":["Jazz"],"preferred_location":"Prague"}`,
		`{}`,
	}}
	fx := newFixture(t, supervisor, memory, &fakeShell{})

	if _, err := fx.service.Handle(ctx, "t1", "I'm customer 1 and I love jazz, I live in Prague"); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	profile, err := fx.profiles.Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if profile.PreferredLocation != "Prague" || len(profile.MusicPreferences) != 1 {
		t.Fatalf("profile = %+v", profile)
	}

	// The next turn starts from the persisted state and re-hydrates
	// the profile.
	out, err := fx.service.Handle(ctx, "t1", "thanks!")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if out.State.UserMemory.PreferredLocation != "Prague" {
		t.Fatalf("hydrated memory = %+v", out.State.UserMemory)
	}
}

func TestUnknownIdentifierRepromptsThenExhausts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fx := newFixture(t, &scriptCompleter{}, &scriptCompleter{}, &fakeShell{})

	out, err := fx.service.Handle(ctx, "t1", "my id is 999")
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if !out.Suspended {
		t.Fatalf("expected reprompt, got %+v", out)
	}

	out, err = fx.service.Handle(ctx, "t1", "maybe 998?")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if !out.Suspended {
		t.Fatalf("expected second reprompt, got %+v", out)
	}

	out, err = fx.service.Handle(ctx, "t1", "really no idea")
	if err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if out.Suspended {
		t.Fatalf("attempts exhausted, turn must end: %+v", out)
	}
	if !strings.Contains(out.Reply, "wasn't able to verify") {
		t.Fatalf("reply = %q", out.Reply)
	}
}

func TestReplayedResumeTokenRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	supervisor := &scriptCompleter{replies: []string{`{"action":"respond","reply":"Hi Frantisek!"}`}}
	memory := &scriptCompleter{replies: []string{`{}`}}
	fx := newFixture(t, supervisor, memory, &fakeShell{})

	out, err := fx.service.Handle(ctx, "t1", "hello there")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	staleToken := out.Token

	// The real resume advances the thread...
	if _, err := fx.service.Handle(ctx, "t1", "frantisekw@jetbrains.com"); err != nil {
		t.Fatalf("resume: %v", err)
	}

	// ...after which replaying the captured token must fail instead
	// of re-running the turn.
	if _, err := fx.service.engine.Resume(ctx, staleToken, "frantisekw@jetbrains.com"); !errors.Is(err, enginex.ErrNotSuspended) {
		t.Fatalf("replayed token err = %v, want ErrNotSuspended", err)
	}
}

func TestHandleReportsPendingPrompt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fx := newFixture(t, &scriptCompleter{}, &scriptCompleter{}, &fakeShell{})

	if _, err := fx.service.Handle(ctx, "t1", "hello"); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	_, prompt, suspended, err := fx.service.Pending(ctx, "t1")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if !suspended || prompt != nodesx.VerifyPrompt {
		t.Fatalf("pending = (%v, %q)", suspended, prompt)
	}
}
