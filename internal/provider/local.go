package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"medchat/internal/models"
)

// DefaultLocalURL is the chat endpoint of a locally hosted inference server.
const DefaultLocalURL = "http://localhost:11434/api/chat"

// localReplyPaths are the response shapes accepted from local servers, in
// the order they are tried.
var localReplyPaths = []string{
	"message.content",
	"choices.0.message.content",
	"response",
}

type LocalConfig struct {
	Name       string
	URL        string
	Model      string
	Enabled    bool
	HTTPClient *http.Client
}

// LocalProvider talks to a locally hosted chat completion server.
type LocalProvider struct {
	name    string
	url     string
	model   string
	enabled bool
	client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	name := cfg.Name
	if name == "" {
		name = "local"
	}
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = DefaultLocalURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &LocalProvider{
		name:    name,
		url:     url,
		model:   cfg.Model,
		enabled: cfg.Enabled,
		client:  client,
	}
}

func (p *LocalProvider) Name() string { return p.name }

func (p *LocalProvider) Enabled() bool { return p.enabled }

func (p *LocalProvider) Generate(ctx context.Context, req Request) (string, error) {
	payload := localRequest{
		Model:    p.model,
		Messages: buildChatMessages(req),
		Stream:   false,
	}
	body, err := postJSON(ctx, p.client, p.name, p.url, nil, payload)
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(body) {
		return "", newFailure(p.name, KindMalformed, errors.New("response is not valid json"))
	}
	for _, path := range localReplyPaths {
		res := gjson.GetBytes(body, path)
		if res.Type != gjson.String {
			continue
		}
		if text := strings.TrimSpace(res.String()); text != "" {
			return text, nil
		}
	}
	return "", newFailure(p.name, KindMalformed, errors.New("no reply content in response"))
}

// buildChatMessages renders [system, ...history, user].
func buildChatMessages(req Request) []chatMessage {
	out := make([]chatMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		out = append(out, chatMessage{Role: string(models.RoleSystem), Content: req.SystemPrompt})
	}
	for _, msg := range req.History {
		if msg.Content == "" {
			continue
		}
		out = append(out, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return append(out, chatMessage{Role: string(models.RoleUser), Content: req.Message})
}
