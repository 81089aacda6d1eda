package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single provider attempt.
const DefaultTimeout = 15 * time.Second

// OutcomeSuccess is the outcome of a successful attempt; failed attempts use
// their FailureKind.
const OutcomeSuccess = "success"

// Attempt describes one provider call.
type Attempt struct {
	ConversationID string
	Provider       string
	Outcome        string
	Latency        time.Duration
	At             time.Time
}

// Recorder persists attempts. Errors are logged and otherwise ignored.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
}

type Option func(*Orchestrator)

func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRuleBasedOnly skips every network stage.
func WithRuleBasedOnly(ruleOnly bool) Option {
	return func(o *Orchestrator) { o.ruleOnly = ruleOnly }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithTerminal replaces the rule provider used as the last stage.
func WithTerminal(r *RuleProvider) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.terminal = r
		}
	}
}

// Orchestrator tries providers sequentially. Generate always returns text.
type Orchestrator struct {
	providers []Provider
	terminal  *RuleProvider
	timeout   time.Duration
	ruleOnly  bool
	logger    zerolog.Logger
	recorder  Recorder
	now       func() time.Time
}

func NewOrchestrator(providers []Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers: providers,
		terminal:  NewRuleProvider(),
		timeout:   DefaultTimeout,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate walks the enabled providers and falls back to the rule stage.
func (o *Orchestrator) Generate(ctx context.Context, req Request) string {
	if !o.ruleOnly {
		for _, p := range o.providers {
			if !isEnabled(p) {
				o.logger.Debug().
					Str("provider", p.Name()).
					Str("outcome", string(KindDisabled)).
					Str("conversation_id", req.ConversationID).
					Msg("provider disabled, skipping")
				continue
			}
			if ctx.Err() != nil {
				break
			}
			if text, err := o.attempt(ctx, p, req); err == nil {
				return text
			}
		}
	}

	start := o.now()
	text := o.terminal.Respond(req.Message)
	o.finish(req.ConversationID, o.terminal.Name(), nil, start)
	return text
}

func (o *Orchestrator) attempt(ctx context.Context, p Provider, req Request) (text string, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := o.now()
	defer func() {
		if r := recover(); r != nil {
			err = newFailure(p.Name(), KindMalformed, fmt.Errorf("provider panic: %v", r))
		}
		o.finish(req.ConversationID, p.Name(), err, start)
	}()

	text, err = p.Generate(attemptCtx, req)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && KindOf(err) != KindTimeout {
			err = newFailure(p.Name(), KindTimeout, err)
		}
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", newFailure(p.Name(), KindMalformed, errors.New("empty reply"))
	}
	return text, nil
}

// finish logs the attempt and hands it to the recorder.
func (o *Orchestrator) finish(conversationID, provider string, err error, start time.Time) {
	end := o.now()
	outcome := OutcomeSuccess
	if err != nil {
		outcome = string(KindOf(err))
		o.logger.Warn().
			Err(err).
			Str("provider", provider).
			Str("outcome", outcome).
			Dur("latency", end.Sub(start)).
			Str("conversation_id", conversationID).
			Msg("provider attempt failed")
	} else {
		o.logger.Debug().
			Str("provider", provider).
			Str("outcome", outcome).
			Dur("latency", end.Sub(start)).
			Str("conversation_id", conversationID).
			Msg("provider attempt succeeded")
	}
	if o.recorder == nil {
		return
	}
	attempt := Attempt{
		ConversationID: conversationID,
		Provider:       provider,
		Outcome:        outcome,
		Latency:        end.Sub(start),
		At:             end,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.recorder.RecordAttempt(ctx, attempt); err != nil {
		o.logger.Warn().Err(err).Str("provider", provider).Msg("record provider attempt failed")
	}
}
