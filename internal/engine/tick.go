package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Engine drives the simulation forward one day at a time.
type Engine struct {
	Tick     uint64        // Last completed day (monotonic, never resets)
	Interval time.Duration // Pause between days; zero runs flat out

	// Callbacks for each tick layer, populated during setup. An error stops
	// the run.
	OnDay   func(ctx context.Context, tick uint64) error // Every tick
	OnMonth func(ctx context.Context, tick uint64) error // Every 30 ticks
	OnYear  func(ctx context.Context, tick uint64) error // Every 360 ticks
}

// NewEngine creates an engine resuming after tick.
func NewEngine(tick uint64) *Engine {
	return &Engine{Tick: tick}
}

// RunFor advances n days, or until ctx is cancelled.
func (e *Engine) RunFor(ctx context.Context, n uint64) error {
	slog.Info("simulation engine started", "tick", e.Tick, "days", n)
	for i := uint64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			slog.Info("simulation engine stopped", "tick", e.Tick, "reason", err)
			return nil
		}
		start := time.Now()
		if err := e.step(ctx); err != nil {
			return fmt.Errorf("tick %d: %w", e.Tick, err)
		}
		if e.Interval > 0 {
			if elapsed := time.Since(start); elapsed < e.Interval {
				select {
				case <-ctx.Done():
				case <-time.After(e.Interval - elapsed):
				}
			}
		}
	}
	slog.Info("simulation engine finished", "tick", e.Tick)
	return nil
}

// step advances the simulation by one tick.
func (e *Engine) step(ctx context.Context) error {
	e.Tick++

	if e.OnDay != nil {
		if err := e.OnDay(ctx, e.Tick); err != nil {
			return err
		}
	}
	if e.Tick%TicksPerMonth == 0 && e.OnMonth != nil {
		if err := e.OnMonth(ctx, e.Tick); err != nil {
			return err
		}
	}
	if e.Tick%TicksPerYear == 0 && e.OnYear != nil {
		if err := e.OnYear(ctx, e.Tick); err != nil {
			return err
		}
	}
	return nil
}

// SimTime renders a tick as a calendar date.
func SimTime(tick uint64, startYear int) string {
	day := tick % TicksPerYear
	season := day / 90
	seasonNames := [4]string{"Spring", "Summer", "Autumn", "Winter"}
	return fmt.Sprintf("%s Day %d, Year %d", seasonNames[season], day%90+1, startYear+int(tick/TicksPerYear))
}
