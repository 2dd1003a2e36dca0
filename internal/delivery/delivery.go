// Package delivery forwards enriched messages to the agent session by
// invoking the host CLI's agent subcommand.
package delivery

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/betterclaw/betterclaw/internal/errors"
)

// Deliverer sends one message to the agent session. Failures are logged by
// the caller and never retried.
type Deliverer interface {
	Deliver(ctx context.Context, message string) error
}

// AgentRunner invokes the external host command:
//
//	<command> agent --session-id <id> --deliver --channel <channel> --message <text>
type AgentRunner struct {
	command   string
	sessionID string
	channel   string
	timeout   time.Duration
}

// NewAgentRunner creates a runner for the host command. timeout <= 0 uses
// the default 30 seconds.
func NewAgentRunner(command, sessionID, channel string, timeout time.Duration) *AgentRunner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AgentRunner{
		command:   command,
		sessionID: sessionID,
		channel:   channel,
		timeout:   timeout,
	}
}

// Deliver runs the delivery command, honoring the configured timeout.
func (r *AgentRunner) Deliver(ctx context.Context, message string) error {
	cmdCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := []string{
		"agent",
		"--session-id", r.sessionID,
		"--deliver",
		"--channel", r.channel,
		"--message", message,
	}

	start := time.Now()
	cmd := exec.CommandContext(cmdCtx, r.command, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return apperrors.WrapDelivery("deliver", fmt.Errorf("delivery command timed out after %s", r.timeout))
		}
		return apperrors.WrapDelivery("deliver", fmt.Errorf("delivery command failed: %w (output: %s)", err, string(output)))
	}

	log.Debug().
		Str("command", r.command).
		Dur("elapsed", time.Since(start)).
		Msg("Delivered message to agent")
	return nil
}
