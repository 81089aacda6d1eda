package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"medchat/internal/models"
)

const (
	DefaultHostedBaseURL = "https://api-inference.huggingface.co/models/"
	// MinGeneratedLength is the shortest hosted reply accepted as a real answer.
	MinGeneratedLength = 10
)

type HostedConfig struct {
	Name       string
	URL        string
	Model      string
	APIKey     string
	Enabled    bool
	HTTPClient *http.Client
}

// HostedProvider calls a hosted text-generation API with a flattened prompt.
type HostedProvider struct {
	name    string
	url     string
	apiKey  string
	enabled bool
	client  *http.Client
}

type hostedParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hostedRequest struct {
	Inputs     string           `json:"inputs"`
	Parameters hostedParameters `json:"parameters"`
}

func NewHostedProvider(cfg HostedConfig) *HostedProvider {
	name := cfg.Name
	if name == "" {
		name = "hosted"
	}
	url := strings.TrimSpace(cfg.URL)
	if url == "" && cfg.Model != "" {
		url = DefaultHostedBaseURL + cfg.Model
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &HostedProvider{
		name:    name,
		url:     url,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		enabled: cfg.Enabled,
		client:  client,
	}
}

func (p *HostedProvider) Name() string { return p.name }

// Enabled requires both the flag and an API key.
func (p *HostedProvider) Enabled() bool {
	return p.enabled && p.apiKey != "" && p.url != ""
}

func (p *HostedProvider) Generate(ctx context.Context, req Request) (string, error) {
	prompt := BuildPrompt(req)
	payload := hostedRequest{
		Inputs: prompt,
		Parameters: hostedParameters{
			MaxNewTokens:   250,
			Temperature:    0.7,
			ReturnFullText: false,
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	body, err := postJSON(ctx, p.client, p.name, p.url, headers, payload)
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(body) {
		return "", newFailure(p.name, KindMalformed, errors.New("response is not valid json"))
	}
	if apiErr := gjson.GetBytes(body, "error"); apiErr.Exists() {
		return "", newFailure(p.name, KindMalformed, fmt.Errorf("api error: %s", apiErr.String()))
	}
	generated := gjson.GetBytes(body, "0.generated_text")
	if !generated.Exists() {
		generated = gjson.GetBytes(body, "generated_text")
	}
	if generated.Type != gjson.String {
		return "", newFailure(p.name, KindMalformed, errors.New("no generated_text in response"))
	}
	text := CleanGenerated(generated.String(), prompt)
	if len([]rune(text)) < MinGeneratedLength {
		return "", newFailure(p.name, KindMalformed, fmt.Errorf("generated text too short (%d chars)", len([]rune(text))))
	}
	return text, nil
}

// BuildPrompt flattens the system context, history and user turn into the
// plain-text dialogue format hosted text-generation models expect.
func BuildPrompt(req Request) string {
	var b strings.Builder
	if req.SystemPrompt != "" {
		b.WriteString(req.SystemPrompt)
		b.WriteString("\n\n")
	}
	for _, msg := range req.History {
		switch msg.Role {
		case models.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", msg.Content)
		case models.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", msg.Content)
		}
	}
	fmt.Fprintf(&b, "User: %s\nAssistant:", req.Message)
	return b.String()
}

// CleanGenerated removes an echoed prompt, leading or trailing "Assistant:"
// framing, and any invented follow-up user turn.
func CleanGenerated(text, prompt string) string {
	text = strings.TrimPrefix(text, prompt)
	text = strings.TrimSpace(text)
	text = strings.TrimSpace(strings.TrimPrefix(text, "Assistant:"))
	if idx := strings.Index(text, "\nUser:"); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSpace(strings.TrimSuffix(text, "Assistant:"))
	return text
}
