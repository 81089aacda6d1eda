// Package composer turns a classification and reply text into the assistant
// message returned to the caller.
package composer

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"medchat/internal/intent"
	"medchat/internal/models"
)

type Option func(*Composer)

// WithClock overrides the wall clock used for timestamps and salutations.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPicker overrides how a reply is chosen from a pool of n candidates.
func WithPicker(pick func(n int) int) Option {
	return func(c *Composer) {
		if pick != nil {
			c.pick = pick
		}
	}
}

type Composer struct {
	now  func() time.Time
	pick func(n int) int
}

func New(opts ...Option) *Composer {
	c := &Composer{now: time.Now, pick: rand.Intn}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Salutation returns the greeting prefix for the hour of t.
func Salutation(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "Good morning!"
	case h < 18:
		return "Good afternoon!"
	default:
		return "Good evening!"
	}
}

// Compose builds the assistant message. A non-empty target wins over text and
// attaches a navigate action; greetings get a time-of-day salutation.
func (c *Composer) Compose(cls intent.Classification, text string, target models.FeatureID) models.Message {
	now := c.now()
	msg := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Timestamp: now,
	}
	switch {
	case target != "":
		msg.Content = c.navigationPhrase(target)
		msg.NavigationAction = models.NavigateTo(target)
	case cls.Kind == intent.KindGreeting:
		if strings.TrimSpace(text) == "" {
			text = c.RuleReply(cls)
		}
		msg.Content = Salutation(now) + " " + strings.TrimSpace(text)
	default:
		if strings.TrimSpace(text) == "" {
			text = c.RuleReply(cls)
		}
		msg.Content = text
	}
	return msg
}

// RuleReply picks a canned reply for the classification.
func (c *Composer) RuleReply(cls intent.Classification) string {
	return c.choose(intent.Replies(cls))
}

// Greeting is the message seeded into a conversation on first read.
func (c *Composer) Greeting() models.Message {
	return c.Compose(intent.Greeting, "", "")
}

func (c *Composer) navigationPhrase(target models.FeatureID) string {
	if phrase := c.choose(intent.Phrasings(target)); phrase != "" {
		return phrase
	}
	return fmt.Sprintf("Taking you to %s.", target)
}

func (c *Composer) choose(pool []string) string {
	switch len(pool) {
	case 0:
		return ""
	case 1:
		return pool[0]
	}
	i := c.pick(len(pool))
	if i < 0 || i >= len(pool) {
		i = 0
	}
	return pool[i]
}
