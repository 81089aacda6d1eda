package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"medchat/internal/models"
)

// Chat model kinds served through eino.
const (
	KindOpenAI = "openai"
	KindClaude = "claude"
	KindGemini = "gemini"
)

type ChatModelConfig struct {
	Name    string
	Kind    string
	BaseURL string
	Model   string
	APIKey  string
	Enabled bool
}

// chatModelFactory builds the eino model; tests replace it.
var chatModelFactory = newChatModel

func newChatModel(ctx context.Context, cfg ChatModelConfig) (model.BaseChatModel, error) {
	switch cfg.Kind {
	case KindOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	case KindGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.Model,
		})
	case KindClaude:
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 1024,
		})
	default:
		return nil, fmt.Errorf("invalid chat model kind: %s", cfg.Kind)
	}
}

// ChatModelProvider generates replies with an eino chat model. The model is
// built on first use and reused afterwards.
type ChatModelProvider struct {
	cfg ChatModelConfig

	mu   sync.Mutex
	chat model.BaseChatModel
}

func NewChatModelProvider(cfg ChatModelConfig) *ChatModelProvider {
	if cfg.Name == "" {
		cfg.Name = cfg.Kind
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return &ChatModelProvider{cfg: cfg}
}

func (p *ChatModelProvider) Name() string { return p.cfg.Name }

func (p *ChatModelProvider) Enabled() bool {
	return p.cfg.Enabled && p.cfg.APIKey != ""
}

func (p *ChatModelProvider) ensureModel(ctx context.Context) (model.BaseChatModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chat != nil {
		return p.chat, nil
	}
	chat, err := chatModelFactory(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	p.chat = chat
	return chat, nil
}

func (p *ChatModelProvider) Generate(ctx context.Context, req Request) (string, error) {
	chat, err := p.ensureModel(ctx)
	if err != nil {
		return "", newFailure(p.cfg.Name, KindNetwork, fmt.Errorf("init chat model: %w", err))
	}
	resp, err := chat.Generate(ctx, toSchemaMessages(req))
	if err != nil {
		return "", newFailure(p.cfg.Name, classifyModelError(ctx, err), err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", newFailure(p.cfg.Name, KindMalformed, errors.New("empty completion"))
	}
	return strings.TrimSpace(resp.Content), nil
}

func toSchemaMessages(req Request) []*schema.Message {
	messages := make([]*schema.Message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: req.SystemPrompt})
	}
	for _, msg := range req.History {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{Role: role, Content: msg.Content})
	}
	return append(messages, &schema.Message{Role: schema.User, Content: req.Message})
}

// classifyModelError inspects SDK errors, which do not share a common type.
func classifyModelError(ctx context.Context, err error) FailureKind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "401"), strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "invalid api key"), strings.Contains(lower, "invalid x-api-key"):
		return KindAuth
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"):
		return KindTimeout
	}
	return KindOf(err)
}
