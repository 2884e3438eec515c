// Package scheduler runs the main control loop of the glove. Every
// iteration first serves requests raised by the gesture tick, then builds
// and commits one frame for the current mode.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lautenbacher.net/goglove/animation"
	"lautenbacher.net/goglove/config"
	"lautenbacher.net/goglove/contact"
	"lautenbacher.net/goglove/driver"
	"lautenbacher.net/goglove/state"
	"lautenbacher.net/goglove/util"
)

// Report describes the last committed frame.
type Report struct {
	Mode     state.Mode
	Previous state.Mode
	Lit      int
	Budget   int
	// Base is the full-field intensity staged before the lights, zero in Demo.
	Base     uint16
	// Contacts is the sampled contact table, zero in Demo.
	Contacts contact.States
	Frames   uint64
}

type Scheduler struct {
	conf     *config.Config
	drv      driver.Driver
	sampler  *contact.Sampler
	shared   *state.Shared
	field    *animation.Field
	rng      animation.Rand
	usable   int
	reports  *util.AtomicEvent[Report]
	lastMode state.Mode
	frames   uint64
}

// New creates a scheduler animating the usable channels of drv. rng picks
// the lights to advance and draws their rise increments.
func New(conf *config.Config, drv driver.Driver, reader contact.Reader, shared *state.Shared, rng animation.Rand) *Scheduler {
	anim := conf.Animation
	usable := drv.UsableChannels()
	return &Scheduler{
		conf:     conf,
		drv:      drv,
		sampler:  contact.NewSampler(reader, anim.DebounceDelay, anim.HoldCeiling),
		shared:   shared,
		field:    animation.NewField(usable, anim.MinRate, anim.MaxRate, anim.Ceiling, anim.FlashIntensity, rng),
		rng:      rng,
		usable:   usable,
		reports:  util.NewAtomicEvent[Report](),
		lastMode: shared.Mode(),
	}
}

// Reports publishes a Report after every committed frame.
func (s *Scheduler) Reports() *util.AtomicEvent[Report] {
	return s.reports
}

// Field exposes the light automaton for inspection.
func (s *Scheduler) Field() *animation.Field {
	return s.field
}

// Run iterates until ctx is done. Frames the driver could not accept in
// time are skipped.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("Starting control loop", "mode", s.shared.Mode(), "usable", s.usable, "maxlit", s.shared.MaxLit())
	for {
		err := s.Iterate(ctx)
		if ctx.Err() != nil {
			slog.Info("Ending control loop go-routine...")
			return
		}
		switch {
		case err == nil:
		case errors.Is(err, driver.ErrBusyTimeout):
			slog.Warn("Skipping frame", "error", err)
		default:
			slog.Error("Iteration failed", "error", err)
		}
	}
}

// Iterate runs one pass of the control loop.
func (s *Scheduler) Iterate(ctx context.Context) error {
	if err := s.servePending(ctx); err != nil {
		return err
	}

	current, previous := s.shared.Modes()
	if current != s.lastMode {
		slog.Info("Mode changed", "mode", current, "previous", previous, "lit", s.field.Lit())
		s.lastMode = current
	}

	var report Report
	var err error
	switch current {
	case state.Demo:
		report, err = s.demoFrame(ctx)
	default:
		report, err = s.productionFrame(ctx)
	}
	if err != nil {
		return err
	}

	s.frames++
	report.Mode = current
	report.Previous = previous
	report.Lit = s.field.Lit()
	report.Frames = s.frames
	s.reports.Send(report)
	return nil
}

// servePending handles requests raised by the gesture tick. A request
// that could not be served is raised again for the next iteration.
func (s *Scheduler) servePending(ctx context.Context) error {
	pending := s.shared.Drain()
	if pending == 0 {
		return nil
	}
	if pending.Has(state.ForceHigh) {
		if err := s.fill(ctx, s.conf.Blink.ForceIntensity); err != nil {
			s.shared.Request(pending)
			return fmt.Errorf("force high: %w", err)
		}
	}
	if pending.Has(state.Blink) {
		if err := s.blink(ctx); err != nil {
			s.shared.Request(state.Blink)
			return fmt.Errorf("blink: %w", err)
		}
	}
	return nil
}

// blink alternates the full field between the force intensity and dark,
// starting lit.
func (s *Scheduler) blink(ctx context.Context) error {
	slog.Info("Acknowledging mode switch", "phases", s.conf.Blink.Phases, "hold", s.conf.Blink.PhaseHold)
	for phase := 0; phase < s.conf.Blink.Phases; phase++ {
		value := s.conf.Blink.ForceIntensity
		if phase%2 == 1 {
			value = 0
		}
		if err := s.fill(ctx, value); err != nil {
			return err
		}
		if err := sleep(ctx, s.conf.Blink.PhaseHold); err != nil {
			return err
		}
	}
	return nil
}

// DiagnosticBlink switches all lights on and off every DiagHold until ctx
// is done. It replaces the control loop for wiring checks.
func (s *Scheduler) DiagnosticBlink(ctx context.Context) {
	slog.Info("Starting diagnostic blink", "intensity", s.conf.Blink.DiagIntensity, "hold", s.conf.Blink.DiagHold)
	on := true
	for {
		value := uint16(0)
		if on {
			value = s.conf.Blink.DiagIntensity
		}
		if err := s.fill(ctx, value); err != nil && ctx.Err() == nil {
			slog.Warn("Diagnostic frame skipped", "error", err)
		} else if err == nil {
			slog.Info("Diagnostic blink", "on", on)
		}
		if err := sleep(ctx, s.conf.Blink.DiagHold); err != nil {
			slog.Info("Ending diagnostic blink...")
			return
		}
		on = !on
	}
}

// productionFrame shows the base intensity raised by the longest hold and
// lets the lights rise only while a contact is held. Without contact the
// rising lights slowly fade.
func (s *Scheduler) productionFrame(ctx context.Context) (Report, error) {
	contacts := s.sampler.Sample()
	if err := s.awaitIdle(ctx); err != nil {
		return Report{}, err
	}

	budget := s.shared.MaxLit()
	s.retireExcess(budget)

	base := s.conf.Animation.BaseIntensity
	if longest := contacts.Longest(); longest > 0 {
		base = uint16(util.Clamp(int(base)+int(longest), 0, driver.MaxValue))
	}
	s.drv.SetAll(base)

	held := contacts.AnyClosed()
	s.field.Refresh(s.drv, !held)

	if held {
		s.advanceRandom(budget)
	}
	s.drv.RequestCommit()
	return Report{Budget: budget, Base: base, Contacts: contacts}, nil
}

func (s *Scheduler) demoFrame(ctx context.Context) (Report, error) {
	if err := s.awaitIdle(ctx); err != nil {
		return Report{}, err
	}
	budget := s.conf.Animation.MaxLitDemo
	s.retireExcess(budget)
	s.advanceRandom(budget)
	s.drv.RequestCommit()
	// contacts are not sampled in Demo
	return Report{Budget: budget}, nil
}

// retireExcess switches off lights beyond budget, left over from a mode
// with a larger budget or from a lowered MaxLit.
func (s *Scheduler) retireExcess(budget int) {
	if n := s.field.Retire(budget, s.drv); n > 0 {
		slog.Debug("Retired lights above budget", "retired", n, "budget", budget)
	}
}

// advanceRandom advances one randomly picked light per usable channel.
// The same light may be picked more than once.
func (s *Scheduler) advanceRandom(budget int) {
	for i := 0; i < s.usable; i++ {
		s.field.Advance(s.rng.IntN(s.usable), budget, s.drv)
	}
}

func (s *Scheduler) fill(ctx context.Context, value uint16) error {
	if err := s.awaitIdle(ctx); err != nil {
		return err
	}
	s.drv.SetAll(value)
	s.drv.RequestCommit()
	return nil
}

func (s *Scheduler) awaitIdle(ctx context.Context) error {
	return driver.AwaitIdle(ctx, s.drv, s.conf.Driver.CommitTimeout, s.conf.Driver.PollInterval)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
