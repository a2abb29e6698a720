// Package economy implements the bounded pool of action points that gates costed player actions.
//
// The pool only answers "is there enough" and "spend this much". Which action costs how much is decided by the
// caller.
package economy

import (
	"log/slog"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/event"
)

var (
	ErrInvalidAmount      = errors.NewSentinel("amount must be positive")
	ErrInsufficientPoints = errors.NewSentinel("insufficient action points")
	ErrCorruptSnapshot    = errors.NewSentinel("corrupt action point snapshot")
)

const (
	DefaultMax      = 20
	DefaultLow      = 5
	DefaultCritical = 2
)

type Config struct {
	Max int `yaml:"max"`
	// Low and Critical are warning thresholds. A warning fires when a consume takes the pool from above the threshold
	// to at or below it.
	Low      int `yaml:"low"`
	Critical int `yaml:"critical"`
}

// DefaultConfig returns the standard 20 point pool.
func DefaultConfig() Config {
	return Config{Max: DefaultMax, Low: DefaultLow, Critical: DefaultCritical}
}

type Snapshot struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

type Economy struct {
	cfg     Config
	current int
	max     int
	bus     *event.Bus
	logger  *slog.Logger
}

// New creates a full pool. Non-positive Max falls back to DefaultMax.
func New(cfg Config, bus *event.Bus, logger *slog.Logger) *Economy {
	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}
	return &Economy{
		cfg:     cfg,
		current: cfg.Max,
		max:     cfg.Max,
		bus:     bus,
		logger:  logger.With("source", "Economy"),
	}
}

func (e *Economy) Current() int {
	return e.current
}

func (e *Economy) Max() int {
	return e.max
}

// HasEnough reports whether n points could be consumed right now.
func (e *Economy) HasEnough(n int) bool {
	return n >= 0 && e.current >= n
}

// Consume spends n points. Nothing changes when n is not positive or the pool holds fewer than n points.
func (e *Economy) Consume(n int) error {
	if n <= 0 {
		err := errors.Wrap(ErrInvalidAmount, "consume", slog.Int("amount", n))
		e.logger.Error("invalid consume", errors.SlogError(err))
		return err
	}
	if e.current < n {
		return errors.Wrap(ErrInsufficientPoints, "consume",
			slog.Int("amount", n), slog.Int("current", e.current))
	}
	before := e.current
	e.current -= n
	e.bus.Publish(event.PointsChanged{Current: e.current, Max: e.max})
	e.bus.Publish(event.PointsConsumed{Amount: n})
	switch {
	case crossed(before, e.current, e.cfg.Critical):
		e.bus.Publish(event.PointsCritical{Current: e.current})
	case crossed(before, e.current, e.cfg.Low):
		e.bus.Publish(event.PointsLow{Current: e.current})
	}
	if e.current == 0 {
		e.bus.Publish(event.PointsExhausted{})
	}
	return nil
}

// crossed reports whether a decrease from before to after passed threshold.
func crossed(before, after, threshold int) bool {
	return threshold > 0 && before > threshold && after <= threshold
}

// Recover adds up to n points without exceeding the maximum. Non-positive amounts are ignored.
func (e *Economy) Recover(n int) {
	if n <= 0 {
		return
	}
	gained := min(n, e.max-e.current)
	if gained == 0 {
		return
	}
	e.current += gained
	e.bus.Publish(event.PointsChanged{Current: e.current, Max: e.max})
	e.bus.Publish(event.PointsRecovered{Amount: gained})
}

// Reset refills the pool to its current maximum.
func (e *Economy) Reset() {
	e.current = e.max
	e.bus.Publish(event.PointsChanged{Current: e.current, Max: e.max})
}

// Refill sets a new maximum and fills the pool. Non-positive values keep the current maximum.
func (e *Economy) Refill(maximum int) {
	if maximum > 0 {
		e.max = maximum
	}
	e.Reset()
}

// Restart returns the pool to its configured size.
func (e *Economy) Restart() {
	e.Refill(e.cfg.Max)
}

func (e *Economy) Snapshot() Snapshot {
	return Snapshot{Current: e.current, Max: e.max}
}

func (e *Economy) Validate(s Snapshot) error {
	if s.Max <= 0 || s.Current < 0 || s.Current > s.Max {
		return errors.Wrap(ErrCorruptSnapshot, "points out of range",
			slog.Int("current", s.Current), slog.Int("max", s.Max))
	}
	return nil
}

func (e *Economy) Restore(s Snapshot) error {
	if err := e.Validate(s); err != nil {
		return err
	}
	e.current = s.Current
	e.max = s.Max
	e.bus.Publish(event.PointsChanged{Current: e.current, Max: e.max})
	return nil
}
