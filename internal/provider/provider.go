// Package provider holds the generation backends and the Orchestrator that
// walks them in order until one produces a reply.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"medchat/internal/models"
)

// Request is everything a provider needs to produce one reply.
type Request struct {
	ConversationID string
	Message        string
	// History is the recent window, oldest first, excluding Message.
	History      []models.Message
	SystemPrompt string
}

// Provider generates reply text.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Enabler is implemented by providers that can be switched off by
// configuration. Disabled providers are skipped without an attempt.
type Enabler interface {
	Enabled() bool
}

func isEnabled(p Provider) bool {
	if e, ok := p.(Enabler); ok {
		return e.Enabled()
	}
	return true
}

// FailureKind classifies why a provider attempt failed.
type FailureKind string

const (
	KindAuth      FailureKind = "auth"
	KindNetwork   FailureKind = "network"
	KindTimeout   FailureKind = "timeout"
	KindMalformed FailureKind = "malformed"
	KindDisabled  FailureKind = "disabled"
)

// Failure is the error returned by provider attempts.
type Failure struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s failure", f.Provider, f.Kind)
	}
	return fmt.Sprintf("%s: %s failure: %v", f.Provider, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func newFailure(provider string, kind FailureKind, err error) *Failure {
	return &Failure{Provider: provider, Kind: kind, Err: err}
}

// KindOf maps any error returned by an attempt to a FailureKind.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

func kindForStatus(code int) FailureKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindNetwork
	}
}
