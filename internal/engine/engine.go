// Package engine runs one chat turn: record the user message, look for a
// redirect, classify, generate and compose the reply, then record it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medchat/internal/composer"
	"medchat/internal/conversation"
	"medchat/internal/intent"
	"medchat/internal/models"
	"medchat/internal/navigation"
	"medchat/internal/provider"
)

var (
	ErrValidation = errors.New("invalid chat request")
	ErrInternal   = errors.New("internal error")
)

const (
	DefaultConversationID = "default"
	MaxMessageLength      = 4000
	DefaultContextWindow  = 6

	DefaultSystemPrompt = "You are a helpful assistant inside a medical records application. " +
		"Answer briefly and professionally. Do not give diagnoses; suggest consulting a doctor when appropriate."

	// ApologyMessage is shown when a reply could not be composed.
	ApologyMessage = "I'm sorry, something went wrong while preparing my reply. Please try again in a moment."
)

// Generator produces reply text and never fails. *provider.Orchestrator
// implements it.
type Generator interface {
	Generate(ctx context.Context, req provider.Request) string
}

type Config struct {
	// RuleBasedOnly answers topics from the canned pools without calling
	// the generator.
	RuleBasedOnly bool
	ContextWindow int
	SystemPrompt  string
}

type ChatRequest struct {
	ConversationID string
	Message        string
	// Context is optional caller-supplied text for the network providers.
	Context string
}

type Engine struct {
	store     *conversation.Store
	extractor *navigation.Extractor
	generator Generator
	composer  *composer.Composer
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time
}

func New(store *conversation.Store, generator Generator, comp *composer.Composer, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultContextWindow
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if comp == nil {
		comp = composer.New()
	}
	return &Engine{
		store:     store,
		extractor: navigation.NewExtractor(),
		generator: generator,
		composer:  comp,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Chat runs one turn and returns the assistant message. On ErrInternal the
// returned message carries ApologyMessage.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) (models.Message, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return models.Message{}, fmt.Errorf("%w: message is required", ErrValidation)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return models.Message{}, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, MaxMessageLength)
	}
	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		id = DefaultConversationID
	}

	userMsg := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: e.now(),
	}
	e.store.Append(id, userMsg)

	reply, err := e.respond(ctx, id, userMsg, req.Context)
	if err != nil {
		e.logger.Error().Err(err).Str("conversation_id", id).Msg("compose reply failed")
		reply = models.Message{
			ID:        uuid.NewString(),
			Role:      models.RoleAssistant,
			Content:   ApologyMessage,
			Timestamp: e.now(),
		}
		e.store.Append(id, reply)
		return reply, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	e.store.Append(id, reply)
	return reply, nil
}

func (e *Engine) respond(ctx context.Context, id string, userMsg models.Message, extra string) (reply models.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	cls, target := e.Route(userMsg.Content)
	log := e.logger.With().Str("conversation_id", id).Stringer("classification", cls).Logger()

	var text string
	switch {
	case target != "":
		log.Debug().Str("target", string(target)).Msg("navigation reply")
	case cls.Kind == intent.KindGreeting, cls.Kind == intent.KindFarewell:
		text = e.composer.RuleReply(cls)
	case cls.Kind == intent.KindTopic && e.cfg.RuleBasedOnly:
		text = e.composer.RuleReply(cls)
	default:
		text = e.generator.Generate(ctx, provider.Request{
			ConversationID: id,
			Message:        userMsg.Content,
			History:        e.history(id, userMsg.ID),
			SystemPrompt:   e.systemPrompt(extra),
		})
	}
	return e.composer.Compose(cls, text, target), nil
}

// Route classifies text. An explicit redirect found by the extractor takes
// precedence over the classifier's keyword scan.
func (e *Engine) Route(text string) (intent.Classification, models.FeatureID) {
	if target, ok := e.extractor.ExtractRedirectTarget(text); ok {
		return intent.Navigation(target), target
	}
	cls := intent.Classify(text)
	if cls.Kind == intent.KindNavigation {
		return cls, cls.Feature
	}
	return cls, ""
}

// history returns the recent window preceding the current user turn.
func (e *Engine) history(id, currentID string) []models.Message {
	window := e.store.RecentWindow(id, e.cfg.ContextWindow+1)
	out := make([]models.Message, 0, len(window))
	for _, msg := range window {
		if msg.ID == currentID {
			continue
		}
		out = append(out, msg)
	}
	if len(out) > e.cfg.ContextWindow {
		out = out[len(out)-e.cfg.ContextWindow:]
	}
	return out
}

func (e *Engine) systemPrompt(extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return e.cfg.SystemPrompt
	}
	return e.cfg.SystemPrompt + "\n\nContext: " + extra
}

// History returns the conversation, seeding a greeting the first time an
// unknown id is read.
func (e *Engine) History(id string) []models.Message {
	return e.store.GetOrSeed(id, e.composer.Greeting)
}

// Clear empties the conversation.
func (e *Engine) Clear(id string) {
	e.store.Clear(id)
}
