package health

import (
	"context"
	"fmt"
	"time"
)

// Checker represents a dependency health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Pinger is anything that can report its own reachability, such as a user store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type pingChecker struct {
	name   string
	target Pinger
}

// NewPingChecker wraps a Pinger as a named Checker.
func NewPingChecker(name string, target Pinger) Checker {
	return &pingChecker{name: name, target: target}
}

func (c *pingChecker) Name() string { return c.name }

func (c *pingChecker) Check(ctx context.Context) error {
	return c.target.Ping(ctx)
}

// Service aggregates dependency checkers for readiness probes.
type Service struct {
	checkers []Checker
	timeout  time.Duration
}

func NewService(checkers ...Checker) *Service {
	return &Service{checkers: checkers, timeout: time.Second}
}

// Ready runs every checker and returns the first failure, naming the checker.
func (s *Service) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for _, ch := range s.checkers {
		if err := ch.Check(ctx); err != nil {
			return fmt.Errorf("%s: %w", ch.Name(), err)
		}
	}
	return nil
}
