// Package judgment resolves ambiguous events through a single LLM call.
// Every failure mode fails open: the pipeline must never lose an ambiguous
// event to a triage-layer fault.
package judgment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/betterclaw/betterclaw/internal/judgment/providers"
	"github.com/betterclaw/betterclaw/internal/models"
)

const (
	defaultTimeout = 15 * time.Second
	maxReplyTokens = 256
)

var nowFn = time.Now

// Judge builds the triage prompt and invokes the configured provider.
type Judge struct {
	provider   providers.Provider
	pushBudget int
	timeout    time.Duration
}

// New creates a Judge for the given "provider/model" spec. A misconfigured
// model yields a Judge whose Evaluate always fails open; construction
// itself does not error so startup cannot be blocked by triage config.
func New(modelSpec, apiKey, baseURL string, pushBudget int) *Judge {
	provider, err := providers.NewFromModel(modelSpec, apiKey, baseURL)
	if err != nil {
		log.Warn().Err(err).Str("model", modelSpec).Msg("LLM judgment misconfigured, ambiguous events will fail open")
		provider = nil
	}
	return &Judge{
		provider:   provider,
		pushBudget: pushBudget,
		timeout:    defaultTimeout,
	}
}

// SetTimeout overrides the per-call timeout. Non-positive values are
// ignored.
func (j *Judge) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		j.timeout = timeout
	}
}

// NewWithProvider wires an explicit provider (tests, custom transports).
func NewWithProvider(provider providers.Provider, pushBudget int) *Judge {
	return &Judge{
		provider:   provider,
		pushBudget: pushBudget,
		timeout:    defaultTimeout,
	}
}

// Evaluate resolves an ambiguous event to push or drop.
func (j *Judge) Evaluate(ctx context.Context, event models.DeviceEvent, deviceCtx models.DeviceContext) models.Decision {
	if j.provider == nil {
		return failOpen("judgment unavailable")
	}

	prompt, err := BuildPrompt(event, deviceCtx, j.pushBudget)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to build judgment prompt")
		return failOpen("prompt build failed")
	}

	callCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	resp, err := j.provider.Chat(callCtx, providers.ChatRequest{
		System: "You triage device telemetry for an AI agent. Decide whether this event " +
			"is worth interrupting the agent's session. Reply with a JSON object " +
			`{"push": bool, "reason": string} and nothing else.`,
		Messages:    []providers.Message{{Role: "user", Content: prompt}},
		MaxTokens:   maxReplyTokens,
		Temperature: 0,
	})
	if err != nil {
		log.Warn().Err(err).Str("subscription", event.SubscriptionID).Msg("LLM judgment call failed")
		return failOpen("llm call failed")
	}
	if strings.TrimSpace(resp.Content) == "" {
		log.Warn().Str("subscription", event.SubscriptionID).Msg("LLM judgment returned empty output")
		return failOpen("empty llm output")
	}

	verdict, err := parseVerdict(resp.Content)
	if err != nil {
		log.Warn().Err(err).Str("content", resp.Content).Msg("Failed to parse LLM verdict")
		return failOpen("unparseable llm output")
	}

	action := models.ActionDrop
	if verdict.Push {
		action = models.ActionPush
	}
	reason := verdict.Reason
	if reason == "" {
		reason = "no reason given"
	}
	return models.Decision{Action: action, Reason: reason}
}

// sanitizedContext is the context view the LLM sees. Location is reduced
// to its label; raw coordinates must not appear in the prompt.
type sanitizedContext struct {
	Device struct {
		Battery  *models.BatteryState `json:"battery,omitempty"`
		Location *sanitizedLocation   `json:"location,omitempty"`
		Health   models.HealthState   `json:"health"`
	} `json:"device"`
	Activity models.ActivityState `json:"activity"`
	Meta     models.MetaState     `json:"meta"`
}

type sanitizedLocation struct {
	Label     string  `json:"label,omitempty"`
	UpdatedAt float64 `json:"updatedAt"`
}

// BuildPrompt renders the deterministic triage prompt.
func BuildPrompt(event models.DeviceEvent, deviceCtx models.DeviceContext, pushBudget int) (string, error) {
	var sanitized sanitizedContext
	sanitized.Device.Battery = deviceCtx.Device.Battery
	sanitized.Device.Health = deviceCtx.Device.Health
	sanitized.Activity = deviceCtx.Activity
	sanitized.Meta = deviceCtx.Meta
	if loc := deviceCtx.Device.Location; loc != nil {
		sanitized.Device.Location = &sanitizedLocation{
			Label:     loc.Label,
			UpdatedAt: loc.UpdatedAt,
		}
	}

	ctxJSON, err := json.MarshalIndent(sanitized, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sanitized context: %w", err)
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	var b strings.Builder
	b.WriteString("Current device context:\n")
	b.Write(ctxJSON)
	b.WriteString("\n\nEvent:\n")
	b.Write(eventJSON)
	fmt.Fprintf(&b, "\n\nPushes today: %d of %d budgeted.\n", deviceCtx.Meta.PushesToday, pushBudget)
	fmt.Fprintf(&b, "Current time: %s\n", nowFn().UTC().Format(time.RFC3339))
	b.WriteString("\nShould this event be pushed to the agent?")
	return b.String(), nil
}

type verdict struct {
	Push   bool   `json:"push"`
	Reason string `json:"reason"`
}

// parseVerdict accepts a bare JSON object or one wrapped in a code fence.
func parseVerdict(content string) (verdict, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var v verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	return v, nil
}

const failOpenSuffix = ": fail open"

func failOpen(cause string) models.Decision {
	return models.Decision{
		Action: models.ActionPush,
		Reason: cause + failOpenSuffix,
	}
}

// IsFailOpen reports whether a verdict was a fail-open push rather than a
// genuine LLM judgment, so callers can account for the two separately.
func IsFailOpen(d models.Decision) bool {
	return strings.HasSuffix(d.Reason, failOpenSuffix)
}
