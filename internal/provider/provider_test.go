package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"medchat/internal/models"
)

func TestLocalProviderAcceptsKnownShapes(t *testing.T) {
	cases := map[string]string{
		"ollama":   `{"message":{"role":"assistant","content":"  ollama reply  "}}`,
		"openai":   `{"choices":[{"message":{"role":"assistant","content":"openai reply"}}]}`,
		"generate": `{"response":"generate reply"}`,
	}
	want := map[string]string{
		"ollama":   "ollama reply",
		"openai":   "openai reply",
		"generate": "generate reply",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			p := NewLocalProvider(LocalConfig{URL: srv.URL, Model: "llama3", Enabled: true})
			got, err := p.Generate(context.Background(), Request{Message: "hello there"})
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if got != want[name] {
				t.Fatalf("expected %q, got %q", want[name], got)
			}
		})
	}
}

func TestLocalProviderSendsHistory(t *testing.T) {
	var received localRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"response":"ok then"}`)
	}))
	defer srv.Close()

	p := NewLocalProvider(LocalConfig{URL: srv.URL, Model: "llama3", Enabled: true})
	_, err := p.Generate(context.Background(), Request{
		Message:      "and now?",
		SystemPrompt: "be brief",
		History: []models.Message{
			{Role: models.RoleUser, Content: "first"},
			{Role: models.RoleAssistant, Content: "second"},
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if received.Model != "llama3" || received.Stream {
		t.Fatalf("unexpected request header fields: %+v", received)
	}
	roles := make([]string, 0, len(received.Messages))
	for _, m := range received.Messages {
		roles = append(roles, m.Role)
	}
	if got := strings.Join(roles, ","); got != "system,user,assistant,user" {
		t.Fatalf("unexpected roles %s", got)
	}
	if last := received.Messages[len(received.Messages)-1]; last.Content != "and now?" {
		t.Fatalf("expected user turn last, got %+v", last)
	}
}

func TestLocalProviderFailureKinds(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    FailureKind
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}, KindAuth},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, KindNetwork},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>oops</html>")
		}, KindMalformed},
		{"unknown shape", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"text":"wrong field"}`)
		}, KindMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			p := NewLocalProvider(LocalConfig{URL: srv.URL, Enabled: true})
			_, err := p.Generate(context.Background(), Request{Message: "hi"})
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := KindOf(err); got != tc.want {
				t.Fatalf("expected kind %s, got %s (%v)", tc.want, got, err)
			}
		})
	}
}

func TestLocalProviderConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewLocalProvider(LocalConfig{URL: url, Enabled: true})
	_, err := p.Generate(context.Background(), Request{Message: "hi"})
	if got := KindOf(err); got != KindNetwork {
		t.Fatalf("expected network failure, got %s (%v)", got, err)
	}
}

func TestHostedProviderStripsEcho(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		var req hostedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := []map[string]string{{
			"generated_text": req.Inputs + " Your lab reports are on the Lab Reports page.\nUser: thanks",
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewHostedProvider(HostedConfig{URL: srv.URL, APIKey: "secret", Enabled: true})
	got, err := p.Generate(context.Background(), Request{Message: "where are my labs"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "Your lab reports are on the Lab Reports page." {
		t.Fatalf("unexpected cleaned text %q", got)
	}
	if auth != "Bearer secret" {
		t.Fatalf("expected bearer header, got %q", auth)
	}
}

func TestHostedProviderRejectsShortOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"generated_text":"ok"}]`)
	}))
	defer srv.Close()

	p := NewHostedProvider(HostedConfig{URL: srv.URL, APIKey: "secret", Enabled: true})
	_, err := p.Generate(context.Background(), Request{Message: "hi"})
	if got := KindOf(err); got != KindMalformed {
		t.Fatalf("expected malformed, got %s", got)
	}
}

func TestHostedProviderRequiresKey(t *testing.T) {
	p := NewHostedProvider(HostedConfig{Model: "some/model", Enabled: true})
	if p.Enabled() {
		t.Fatalf("hosted provider without api key must be disabled")
	}
}

func TestBuildPromptAndClean(t *testing.T) {
	req := Request{
		Message: "how are you",
		History: []models.Message{
			{Role: models.RoleUser, Content: "hello"},
			{Role: models.RoleAssistant, Content: "Hi!"},
		},
	}
	prompt := BuildPrompt(req)
	want := "User: hello\nAssistant: Hi!\nUser: how are you\nAssistant:"
	if prompt != want {
		t.Fatalf("unexpected prompt %q", prompt)
	}
	if got := CleanGenerated("Assistant: Doing well, thank you.", prompt); got != "Doing well, thank you." {
		t.Fatalf("unexpected clean result %q", got)
	}
}

func TestRuleProviderGroups(t *testing.T) {
	r := NewRuleProvider()
	cases := map[string]string{
		"show me the patient history": "Patient records",
		"can you diagnose this rash":  "I can't provide a diagnosis",
		"what dosage should I take":   "Prescriptions can be created",
		"are my lab results in":       "Lab reports are listed",
		"I need to book a visit":      "Appointments can be booked",
		"where is the menu":           "You can reach every section",
		"how do I upload a file":      "Clinical documents",
		"question about my invoice":   "Billing questions",
	}
	for msg, prefix := range cases {
		if got := r.Respond(msg); !strings.HasPrefix(got, prefix) {
			t.Errorf("%q: expected prefix %q, got %q", msg, prefix, got)
		}
	}
	if got := r.Respond("qwerty"); got != GenericReply {
		t.Fatalf("expected generic reply, got %q", got)
	}
}

type stubProvider struct {
	name    string
	enabled bool
	text    string
	err     error
	delay   time.Duration
	panics  bool
	calls   int
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Enabled() bool { return s.enabled }
func (s *stubProvider) Generate(ctx context.Context, req Request) (string, error) {
	s.calls++
	if s.panics {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

type memoryRecorder struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (m *memoryRecorder) RecordAttempt(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memoryRecorder) outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.attempts))
	for _, a := range m.attempts {
		out = append(out, a.Provider+"="+a.Outcome)
	}
	return out
}

func TestOrchestratorFallsThrough(t *testing.T) {
	first := &stubProvider{name: "local", enabled: true, err: newFailure("local", KindNetwork, errors.New("refused"))}
	second := &stubProvider{name: "hosted", enabled: true, text: "hosted answer"}
	rec := &memoryRecorder{}
	o := NewOrchestrator([]Provider{first, second}, WithRecorder(rec))

	got := o.Generate(context.Background(), Request{ConversationID: "c1", Message: "hi"})
	if got != "hosted answer" {
		t.Fatalf("expected hosted answer, got %q", got)
	}
	if got := strings.Join(rec.outcomes(), ","); got != "local=network,hosted=success" {
		t.Fatalf("unexpected attempts %s", got)
	}
}

func TestOrchestratorSkipsDisabled(t *testing.T) {
	disabled := &stubProvider{name: "local", enabled: false, text: "never"}
	o := NewOrchestrator([]Provider{disabled})
	got := o.Generate(context.Background(), Request{Message: "anything at all"})
	if got == "" || got == "never" {
		t.Fatalf("expected rule reply, got %q", got)
	}
	if disabled.calls != 0 {
		t.Fatalf("disabled provider was called")
	}
}

func TestOrchestratorLogsDisabledOutcome(t *testing.T) {
	var buf bytes.Buffer
	disabled := &stubProvider{name: "hosted", enabled: false}
	rec := &memoryRecorder{}
	o := NewOrchestrator([]Provider{disabled}, WithLogger(zerolog.New(&buf)), WithRecorder(rec))
	o.Generate(context.Background(), Request{ConversationID: "c9", Message: "qwerty"})

	out := buf.String()
	if !strings.Contains(out, `"provider":"hosted"`) || !strings.Contains(out, `"outcome":"disabled"`) {
		t.Fatalf("expected disabled outcome in log, got %s", out)
	}
	if got := strings.Join(rec.outcomes(), ","); got != "rules=success" {
		t.Fatalf("skipped providers must not be journaled, got %s", got)
	}
}

func TestOrchestratorRuleBasedOnly(t *testing.T) {
	p := &stubProvider{name: "local", enabled: true, text: "network text"}
	o := NewOrchestrator([]Provider{p}, WithRuleBasedOnly(true))
	got := o.Generate(context.Background(), Request{Message: "show my invoice"})
	if !strings.HasPrefix(got, "Billing questions") {
		t.Fatalf("expected billing rule reply, got %q", got)
	}
	if p.calls != 0 {
		t.Fatalf("network provider must not be called in rule-only mode")
	}
}

func TestOrchestratorTimeout(t *testing.T) {
	slow := &stubProvider{name: "local", enabled: true, text: "late", delay: time.Second}
	rec := &memoryRecorder{}
	o := NewOrchestrator([]Provider{slow}, WithTimeout(20*time.Millisecond), WithRecorder(rec))

	start := time.Now()
	got := o.Generate(context.Background(), Request{Message: "qwerty"})
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("attempt was not bounded by timeout")
	}
	if got != GenericReply {
		t.Fatalf("expected generic rule reply, got %q", got)
	}
	if outcomes := rec.outcomes(); outcomes[0] != "local=timeout" {
		t.Fatalf("expected timeout outcome, got %v", outcomes)
	}
}

func TestOrchestratorRecoversPanic(t *testing.T) {
	p := &stubProvider{name: "local", enabled: true, panics: true}
	rec := &memoryRecorder{}
	o := NewOrchestrator([]Provider{p}, WithRecorder(rec))
	if got := o.Generate(context.Background(), Request{Message: "qwerty"}); got != GenericReply {
		t.Fatalf("expected generic reply, got %q", got)
	}
	if outcomes := rec.outcomes(); outcomes[0] != "local=malformed" {
		t.Fatalf("expected malformed outcome, got %v", outcomes)
	}
}

func TestOrchestratorEmptyReplyFallsThrough(t *testing.T) {
	p := &stubProvider{name: "local", enabled: true, text: "   "}
	o := NewOrchestrator([]Provider{p})
	if got := o.Generate(context.Background(), Request{Message: "qwerty"}); got != GenericReply {
		t.Fatalf("expected generic reply, got %q", got)
	}
}

func TestOrchestratorAllDisabledAlwaysAnswers(t *testing.T) {
	o := NewOrchestrator([]Provider{
		NewLocalProvider(LocalConfig{Enabled: false}),
		NewHostedProvider(HostedConfig{Enabled: true}),
	})
	inputs := []string{"", " ", "qwerty", "tell me something", "😀😀😀", strings.Repeat("x", 4000)}
	for _, in := range inputs {
		if got := o.Generate(context.Background(), Request{Message: in}); strings.TrimSpace(got) == "" {
			t.Fatalf("empty reply for %q", in)
		}
	}
}
