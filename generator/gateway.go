// Package generator wraps the generative-text collaborator behind a bounded
// retry policy and validates its output. Callers that tolerate generic copy
// fall back to a deterministic template when generation is exhausted; callers
// that require personalized content get an error instead.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrGenerationFailure signals that every attempt was exhausted without a
// well-formed, non-empty result.
var ErrGenerationFailure = errors.New("content generation failed after all attempts")

// Completer is the generative-text collaborator. It may return malformed or
// empty text; all structural validation happens in the Gateway.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RetryPolicy controls the gateway's attempt loop.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy is three attempts with a short fixed pause in between.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     func(int) time.Duration { return 2 * time.Second },
	}
}

// Params describes one content request.
type Params struct {
	ContactName   string
	Organization  string
	SubjectPrompt string
	BodyPrompt    string
	Category      string

	// AllowFallback permits the deterministic template when generation is
	// exhausted. First-touch cold outreach tolerates generic copy; a reply
	// to a specific inbound question never does.
	AllowFallback bool
}

// Draft is a generated subject/body pair.
type Draft struct {
	Subject  string
	Body     string
	Fallback bool
}

// Gateway produces email drafts through the completer with bounded retries.
type Gateway struct {
	completer Completer
	policy    RetryPolicy
	logger    *logrus.Logger
}

// NewGateway creates a gateway with the given completer and retry policy.
func NewGateway(completer Completer, policy RetryPolicy, logger *logrus.Logger) *Gateway {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &Gateway{completer: completer, policy: policy, logger: logger}
}

// Generate produces a draft for the given params. On exhaustion it either
// substitutes the fallback template (AllowFallback) or returns
// ErrGenerationFailure.
func (g *Gateway) Generate(ctx context.Context, p Params) (*Draft, error) {
	prompt := buildPrompt(p)

	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		raw, err := g.completer.Complete(ctx, prompt)
		if err == nil {
			draft, perr := parseDraft(raw)
			if perr == nil {
				return draft, nil
			}
			err = perr
		}

		g.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"max":     g.policy.MaxAttempts,
			"error":   err,
		}).Warn("content generation attempt failed")

		if attempt < g.policy.MaxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.policy.Backoff(attempt)):
			}
		}
	}

	if p.AllowFallback {
		g.logger.WithField("contact", p.ContactName).Info("using fallback template")
		return fallbackDraft(p)
	}
	return nil, ErrGenerationFailure
}

// buildPrompt assembles a structured prompt instructing the model to answer
// with a JSON object.
func buildPrompt(p Params) string {
	var b strings.Builder
	b.WriteString("You are writing a business email.\n")
	fmt.Fprintf(&b, "Recipient: %s", p.ContactName)
	if p.Organization != "" {
		fmt.Fprintf(&b, " at %s", p.Organization)
	}
	b.WriteString("\n")
	if p.Category != "" {
		fmt.Fprintf(&b, "Email category: %s\n", p.Category)
	}
	fmt.Fprintf(&b, "Subject guidance: %s\n", p.SubjectPrompt)
	fmt.Fprintf(&b, "Body guidance: %s\n", p.BodyPrompt)
	b.WriteString(`Respond with only a JSON object: {"subject": "...", "body": "..."}`)
	return b.String()
}

type draftPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// parseDraft extracts and validates the structured result. A missing JSON
// object or an empty body counts as a failed attempt.
func parseDraft(raw string) (*Draft, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in completion")
	}

	var payload draftPayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("malformed completion: %w", err)
	}
	if strings.TrimSpace(payload.Body) == "" {
		return nil, fmt.Errorf("completion has empty body")
	}
	return &Draft{Subject: strings.TrimSpace(payload.Subject), Body: strings.TrimSpace(payload.Body)}, nil
}

var fallbackTemplate = template.Must(template.New("fallback").Parse(
	`Hi {{.Name}},

I wanted to reach out{{if .Organization}} because of the work {{.Organization}} is doing{{end}} and see whether a short conversation would be useful.

Would you be open to a quick call this week?

Best regards`))

// fallbackDraft renders the deterministic first-touch template.
func fallbackDraft(p Params) (*Draft, error) {
	name := p.ContactName
	if name == "" {
		name = "there"
	}
	var body bytes.Buffer
	err := fallbackTemplate.Execute(&body, struct {
		Name         string
		Organization string
	}{name, p.Organization})
	if err != nil {
		return nil, fmt.Errorf("rendering fallback template: %w", err)
	}

	subject := "Quick question"
	if p.Organization != "" {
		subject = "Quick question for " + p.Organization
	}
	return &Draft{Subject: subject, Body: body.String(), Fallback: true}, nil
}
