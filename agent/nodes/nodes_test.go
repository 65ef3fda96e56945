package nodes

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	contractx "github.com/soundvault/support-agent/agent/contract"
	statex "github.com/soundvault/support-agent/agent/state"
)

var testClock = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

type fakeCompleter struct {
	replies []string
	err     error
	calls   int
}

func (f *fakeCompleter) Complete(ctx context.Context, msgs []contractx.Message, tools []contractx.ToolSpec) (contractx.Completion, error) {
	f.calls++
	if f.err != nil {
		return contractx.Completion{}, f.err
	}
	if len(f.replies) == 0 {
		return contractx.Completion{}, errors.New("fakeCompleter: no scripted reply left")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return contractx.Completion{Text: reply}, nil
}

type fakePrompts struct{}

func (fakePrompts) Get(ctx context.Context, name string) (string, error) {
	return "prompt:" + name, nil
}

type fakeDirectory struct {
	customers map[string]int64
	err       error
}

func (f *fakeDirectory) FindCustomer(ctx context.Context, candidate string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	id, ok := f.customers[candidate]
	if !ok {
		return 0, contractx.ErrCustomerNotFound
	}
	return id, nil
}

type fakeProfiles struct {
	profile  contractx.UserMemory
	loadErr  error
	mergeErr error
	merged   []contractx.MemoryDelta
}

func (f *fakeProfiles) Load(ctx context.Context, customerID int64) (contractx.UserMemory, error) {
	if f.loadErr != nil {
		return contractx.UserMemory{}, f.loadErr
	}
	return f.profile, nil
}

func (f *fakeProfiles) Merge(ctx context.Context, customerID int64, delta contractx.MemoryDelta) error {
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merged = append(f.merged, delta)
	return nil
}

type fakeShell struct {
	reply string
	used  int
	err   error
	tags  []contractx.SubagentTag
}

func (f *fakeShell) Invoke(ctx context.Context, tag contractx.SubagentTag, st *statex.Conversation, budget int) (string, int, error) {
	f.tags = append(f.tags, tag)
	return f.reply, f.used, f.err
}

func newThread(t *testing.T, userText string) *statex.Conversation {
	t.Helper()
	st := statex.NewConversation("thread-1", testClock())
	st.RemainingSteps = 5
	if userText != "" {
		st.AppendUser(userText, testClock())
	}
	return st
}

func TestExtractIdentifier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"numeric id", "My customer ID is 1.", "1", true},
		{"email", "it's frantisek@jetbrains.com thanks", "frantisek@jetbrains.com", true},
		{"phone", "reach me at +420(914)902-1229", "+420(914)902-1229", true},
		{"id beats phone", "id 42, phone +1(212)555-0100", "42", true},
		{"nothing", "I just want concert tips", "", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractIdentifier(tc.text)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("ExtractIdentifier(%q) = (%q, %v), want (%q, %v)", tc.text, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestVerifyCustomerSuspendsWithoutIdentifier(t *testing.T) {
	t.Parallel()

	st := newThread(t, "hi, what albums do you carry?")
	dir := &fakeDirectory{customers: map[string]int64{"1": 1}}

	d, err := VerifyCustomer(context.Background(), st, dir, 3, testClock)
	if err != nil {
		t.Fatalf("VerifyCustomer: %v", err)
	}
	if !d.Suspend || d.Prompt != VerifyPrompt {
		t.Fatalf("expected suspension with the verify prompt, got %+v", d)
	}
	if st.Verified() {
		t.Fatal("thread must not be verified")
	}
}

func TestVerifyCustomerResolvesIdentifier(t *testing.T) {
	t.Parallel()

	st := newThread(t, "My customer ID is 1.")
	dir := &fakeDirectory{customers: map[string]int64{"1": 1}}

	d, err := VerifyCustomer(context.Background(), st, dir, 3, testClock)
	if err != nil {
		t.Fatalf("VerifyCustomer: %v", err)
	}
	if d.Next != NodeLoadMemory {
		t.Fatalf("expected goto %s, got %+v", NodeLoadMemory, d)
	}
	if st.CustomerID != 1 {
		t.Fatalf("CustomerID = %d, want 1", st.CustomerID)
	}
}

func TestVerifyCustomerRepromptsOnUnknownIdentifier(t *testing.T) {
	t.Parallel()

	st := newThread(t, "My customer ID is 999.")
	st.VerifyAttempts = 1
	dir := &fakeDirectory{customers: map[string]int64{"1": 1}}

	d, err := VerifyCustomer(context.Background(), st, dir, 5, testClock)
	if err != nil {
		t.Fatalf("VerifyCustomer: %v", err)
	}
	if !d.Suspend || d.Prompt != verifyRetryPrompt {
		t.Fatalf("expected retry reprompt, got %+v", d)
	}
	if st.VerifyAttempts != 2 {
		t.Fatalf("VerifyAttempts = %d, want 2", st.VerifyAttempts)
	}
}

func TestVerifyCustomerExhaustsAttempts(t *testing.T) {
	t.Parallel()

	st := newThread(t, "no idea")
	st.VerifyAttempts = 2
	dir := &fakeDirectory{customers: map[string]int64{}}

	d, err := VerifyCustomer(context.Background(), st, dir, 3, testClock)
	if err != nil {
		t.Fatalf("VerifyCustomer: %v", err)
	}
	if !d.End {
		t.Fatalf("expected the turn to end, got %+v", d)
	}
	if got, _ := st.LastAgentMessage(); got != verifyExhaustedReply {
		t.Fatalf("last agent message = %q", got)
	}
}

func TestVerifyCustomerDirectoryOutageSuspends(t *testing.T) {
	t.Parallel()

	st := newThread(t, "My customer ID is 1.")
	dir := &fakeDirectory{err: errors.New("connection refused")}

	d, err := VerifyCustomer(context.Background(), st, dir, 3, testClock)
	if err != nil {
		t.Fatalf("VerifyCustomer: %v", err)
	}
	if !d.Suspend || d.Prompt != verifyTransientPrompt {
		t.Fatalf("expected transient reprompt, got %+v", d)
	}
	if st.VerifyAttempts != 0 {
		t.Fatalf("an outage must not burn an attempt, VerifyAttempts = %d", st.VerifyAttempts)
	}
}

func TestRouteRefusesDelegationUnverified(t *testing.T) {
	t.Parallel()

	st := newThread(t, "show me my invoices")
	completer := &fakeCompleter{replies: []string{`{"action":"delegate","scores":{"invoice":0.9}}`}}

	_, err := Route(context.Background(), st, completer, fakePrompts{})
	if !errors.Is(err, contractx.ErrUnverifiedRoute) {
		t.Fatalf("err = %v, want ErrUnverifiedRoute", err)
	}
}

func TestRouteDelegatesByScore(t *testing.T) {
	t.Parallel()

	st := newThread(t, "Show me my last 3 invoices")
	st.CustomerID = 1
	completer := &fakeCompleter{replies: []string{
		"Routing verdict:\n```json\n" + `{"action":"delegate","scores":{"invoice":0.8,"music":0.3}}` + "\n```",
	}}

	got, err := Route(context.Background(), st, completer, fakePrompts{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got.Action != contractx.ActionDelegate || got.Tag != contractx.TagInvoice {
		t.Fatalf("decision = %+v, want delegate to invoice", got)
	}
}

func TestRouteTieBreaksByPriority(t *testing.T) {
	t.Parallel()

	st := newThread(t, "songs on my invoice")
	st.CustomerID = 1
	completer := &fakeCompleter{replies: []string{`{"action":"delegate","scores":{"music":0.5,"invoice":0.5,"concert":0.5}}`}}

	got, err := Route(context.Background(), st, completer, fakePrompts{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got.Tag != contractx.TagInvoice {
		t.Fatalf("tie must resolve to invoice, got %s", got.Tag)
	}
}

func TestRouteRejectsMalformedOutput(t *testing.T) {
	t.Parallel()

	st := newThread(t, "hello")
	st.CustomerID = 1

	for _, reply := range []string{
		"no json here",
		`{"action":"respond"}`,
		`{"action":"teleport","reply":"hi"}`,
		`{"action":"delegate","scores":{"weather":1.0}}`,
	} {
		completer := &fakeCompleter{replies: []string{reply}}
		if _, err := Route(context.Background(), st, completer, fakePrompts{}); !errors.Is(err, contractx.ErrSchemaViolation) {
			t.Fatalf("reply %q: err = %v, want ErrSchemaViolation", reply, err)
		}
	}
}

func TestSuperviseDelegateSetsPendingRoute(t *testing.T) {
	t.Parallel()

	st := newThread(t, "what's on my invoice?")
	st.CustomerID = 1
	completer := &fakeCompleter{replies: []string{`{"action":"delegate","scores":{"invoice":1.0}}`}}

	d, err := Supervise(context.Background(), st, completer, fakePrompts{}, testClock)
	if err != nil {
		t.Fatalf("Supervise: %v", err)
	}
	if d.Next != NodeInvokeSubagent || st.PendingRoute != contractx.TagInvoice {
		t.Fatalf("expected pending invoice delegation, got directive %+v route %q", d, st.PendingRoute)
	}
}

func TestSuperviseDegradesWhenBudgetDrained(t *testing.T) {
	t.Parallel()

	st := newThread(t, "and my second invoice?")
	st.CustomerID = 1
	st.RemainingSteps = 0
	completer := &fakeCompleter{replies: []string{`{"action":"delegate","scores":{"invoice":1.0}}`}}

	d, err := Supervise(context.Background(), st, completer, fakePrompts{}, testClock)
	if err != nil {
		t.Fatalf("Supervise: %v", err)
	}
	if d.Next != NodeCreateMemory {
		t.Fatalf("drained budget must close the loop, got %+v", d)
	}
	if st.PendingRoute != "" {
		t.Fatalf("no route may stay pending, got %q", st.PendingRoute)
	}
	if got, ok := st.LastAgentMessage(); !ok || got != budgetExhaustedReply {
		t.Fatalf("last agent message = %q", got)
	}
}

func TestSuperviseRespondAppendsReply(t *testing.T) {
	t.Parallel()

	st := newThread(t, "thanks!")
	st.CustomerID = 1
	completer := &fakeCompleter{replies: []string{`{"action":"respond","reply":"Happy to help!"}`}}

	d, err := Supervise(context.Background(), st, completer, fakePrompts{}, testClock)
	if err != nil {
		t.Fatalf("Supervise: %v", err)
	}
	if d.Next != NodeCreateMemory {
		t.Fatalf("expected goto %s, got %+v", NodeCreateMemory, d)
	}
	if got, _ := st.LastAgentMessage(); got != "Happy to help!" {
		t.Fatalf("last agent message = %q", got)
	}
}

func TestInvokeSubagentChargesAtLeastOneStep(t *testing.T) {
	t.Parallel()

	st := newThread(t, "invoices please")
	st.CustomerID = 1
	st.PendingRoute = contractx.TagInvoice
	shell := &fakeShell{reply: "You have 7 invoices.", used: 0}

	d, err := InvokeSubagent(context.Background(), st, shell, testClock)
	if err != nil {
		t.Fatalf("InvokeSubagent: %v", err)
	}
	if d.Next != NodeSupervise {
		t.Fatalf("expected goto %s, got %+v", NodeSupervise, d)
	}
	if st.RemainingSteps != 4 {
		t.Fatalf("RemainingSteps = %d, want 4", st.RemainingSteps)
	}
	if st.PendingRoute != "" {
		t.Fatalf("pending route not cleared: %q", st.PendingRoute)
	}
	last := st.Messages[len(st.Messages)-1]
	if last.Role != contractx.RoleAgent || last.Name != "invoice" || last.Content != "You have 7 invoices." {
		t.Fatalf("unexpected appended message %+v", last)
	}
}

func TestInvokeSubagentRefusesUnverifiedThread(t *testing.T) {
	t.Parallel()

	st := newThread(t, "invoices please")
	st.PendingRoute = contractx.TagInvoice

	_, err := InvokeSubagent(context.Background(), st, &fakeShell{}, testClock)
	if !errors.Is(err, contractx.ErrUnverifiedRoute) {
		t.Fatalf("err = %v, want ErrUnverifiedRoute", err)
	}
}

func TestInvokeSubagentRequiresPendingRoute(t *testing.T) {
	t.Parallel()

	st := newThread(t, "invoices please")
	st.CustomerID = 1

	_, err := InvokeSubagent(context.Background(), st, &fakeShell{}, testClock)
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreateMemoryMergesDelta(t *testing.T) {
	t.Parallel()

	st := newThread(t, "I love jazz and I'm in Prague")
	st.CustomerID = 1
	completer := &fakeCompleter{replies: []string{`{"music_preferences":["jazz"],"preferred_location":"Prague"}`}}
	profiles := &fakeProfiles{}

	d, err := CreateMemory(context.Background(), st, completer, fakePrompts{}, profiles)
	if err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	if !d.End {
		t.Fatalf("expected end, got %+v", d)
	}
	if len(profiles.merged) != 1 || profiles.merged[0].PreferredLocation != "Prague" {
		t.Fatalf("merged deltas = %+v", profiles.merged)
	}
	if st.UserMemory.PreferredLocation != "Prague" || len(st.UserMemory.MusicPreferences) != 1 {
		t.Fatalf("in-flight profile not updated: %+v", st.UserMemory)
	}
}

func TestCreateMemoryDegradesOnMalformedDelta(t *testing.T) {
	t.Parallel()

	st := newThread(t, "bye")
	st.CustomerID = 1
	completer := &fakeCompleter{replies: []string{"not json at all"}}
	profiles := &fakeProfiles{}

	d, err := CreateMemory(context.Background(), st, completer, fakePrompts{}, profiles)
	if err != nil {
		t.Fatalf("CreateMemory must degrade, got %v", err)
	}
	if !d.End || len(profiles.merged) != 0 {
		t.Fatalf("expected end with no merge, got %+v merged=%d", d, len(profiles.merged))
	}
}

func TestCreateMemorySkipsUnverifiedThread(t *testing.T) {
	t.Parallel()

	st := newThread(t, "bye")
	completer := &fakeCompleter{}
	profiles := &fakeProfiles{}

	d, err := CreateMemory(context.Background(), st, completer, fakePrompts{}, profiles)
	if err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	if !d.End || completer.calls != 0 {
		t.Fatalf("unverified thread must skip extraction, directive %+v calls %d", d, completer.calls)
	}
}

func TestCreateMemoryPropagatesMergeFailure(t *testing.T) {
	t.Parallel()

	st := newThread(t, "I love jazz")
	st.CustomerID = 1
	completer := &fakeCompleter{replies: []string{`{"music_preferences":["jazz"]}`}}
	profiles := &fakeProfiles{mergeErr: fmt.Errorf("store down")}

	if _, err := CreateMemory(context.Background(), st, completer, fakePrompts{}, profiles); err == nil {
		t.Fatal("expected the merge failure to propagate")
	}
}

func TestLoadMemoryDegradesOnStoreFailure(t *testing.T) {
	t.Parallel()

	st := newThread(t, "hello")
	st.CustomerID = 1
	st.UserMemory = contractx.UserMemory{PreferredLocation: "stale"}

	d, err := LoadMemory(context.Background(), st, &fakeProfiles{loadErr: errors.New("timeout")})
	if err != nil {
		t.Fatalf("LoadMemory: %v", err)
	}
	if d.Next != NodeSupervise {
		t.Fatalf("expected goto %s, got %+v", NodeSupervise, d)
	}
	if st.UserMemory.PreferredLocation != "" {
		t.Fatalf("failed load must reset to a zero profile, got %+v", st.UserMemory)
	}
}
