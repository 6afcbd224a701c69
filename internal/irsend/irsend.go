// Package irsend transmits commands to the heat pump's IR receiver by
// shelling out to lirc's irsend client (spec §6), and attempts to
// restart the lirc daemon when a send fails.
package irsend

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kimmoahola/ilp-commander/internal/command"
)

// Retry policy for IR transmission (spec §4.3: "IR transmit: 2 tries, 5s between").
// MaxRetries counts the retries after the first attempt.
var (
	MaxRetries   uint64 = 1
	RetryBackoff        = 5 * time.Second
)

// Sender transmits command tokens via the irsend binary against the
// "ilp" remote configured in lircd.conf.
type Sender struct {
	irsendPath string
	remote     string
	runner     func(ctx context.Context, name string, arg ...string) error
}

// New builds a Sender. irsendPath and remote default to "irsend" and
// "ilp" when empty.
func New(irsendPath, remote string) *Sender {
	if irsendPath == "" {
		irsendPath = "irsend"
	}
	if remote == "" {
		remote = "ilp"
	}
	return &Sender{
		irsendPath: irsendPath,
		remote:     remote,
		runner:     runCommand,
	}
}

func runCommand(ctx context.Context, name string, arg ...string) error {
	cmd := exec.CommandContext(ctx, name, arg...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %v: %w (%s)", name, arg, err, out)
	}
	return nil
}

// Send transmits cmd, retrying on failure per the configured policy.
// On exhausted retries it attempts to restart the lirc daemon and
// returns the last error, which the caller records into the pipeline
// trace (spec §6, §7 "Actuator failure").
func (s *Sender) Send(ctx context.Context, cmd command.Command) error {
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(RetryBackoff), MaxRetries)

	err := backoff.Retry(func() error {
		return s.runner(ctx, s.irsendPath, "SEND_ONCE", s.remote, cmd.Token())
	}, backoff.WithContext(policy, ctx))

	if err != nil {
		if restartErr := s.restartDaemon(ctx); restartErr != nil {
			return fmt.Errorf("send %s failed: %w (daemon restart also failed: %v)", cmd, err, restartErr)
		}
		return fmt.Errorf("send %s failed: %w", cmd, err)
	}
	return nil
}

func (s *Sender) restartDaemon(ctx context.Context) error {
	return s.runner(ctx, "sudo", "service", "lirc", "restart")
}
