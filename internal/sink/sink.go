// Package sink defines where finished analyses are delivered.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shineum/phishtriage/internal/analysis"
	"github.com/shineum/phishtriage/internal/history"
)

// Sink is the interface that analysis destinations must implement.
type Sink interface {
	// Deliver hands a finished analysis to this sink.
	// It returns an error if the delivery fails.
	Deliver(ctx context.Context, a *analysis.Analysis) error

	// Name returns the human-readable name of this sink.
	Name() string
}

// History saves every analysis into a history store.
type History struct {
	store history.Store
}

// NewHistory wraps store as a sink.
func NewHistory(store history.Store) *History {
	return &History{store: store}
}

// Deliver saves the analysis.
func (h *History) Deliver(ctx context.Context, a *analysis.Analysis) error {
	if err := h.store.Save(ctx, a); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// Name returns the sink name.
func (h *History) Name() string {
	return "history"
}

type multi []Sink

// Multi delivers to every sink in order. A failing sink does not stop the
// others; all failures are joined into the returned error.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Deliver(ctx context.Context, a *analysis.Analysis) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, a); err != nil {
			slog.Error("sink delivery failed",
				"sink", s.Name(),
				"id", a.Email.ID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m multi) Name() string {
	names := make([]string, 0, len(m))
	for _, s := range m {
		names = append(names, s.Name())
	}
	return strings.Join(names, ",")
}
