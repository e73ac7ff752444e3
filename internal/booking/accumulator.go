package booking

import (
	"context"

	"trip-agent/internal/entity"
	"trip-agent/pkg/apperr"
	"trip-agent/pkg/logg"
	"trip-agent/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	accumulatorName   = "StepAccumulator"
	accumulatorTracer = "booking.accumulator"

	StepSearching = "Searching destination"
	StepFiltering = "Applying filters"
	StepSelecting = "Selecting result"
)

// StepFunc is told the name of each action group right before it starts.
type StepFunc func(step string)

// Actions are the page sequences an accumulator commits.
type Actions interface {
	SearchDestination(ctx context.Context, destination Destination, dates DateRange, guests GuestCounts) error
	ApplyFilters(ctx context.Context, filters Filters) error
	SelectTopResult(ctx context.Context) error
}

// Accumulator collects intents across conversation turns and commits each action
// group at most once per session. It is not safe for concurrent use.
type Accumulator struct {
	logger   *zap.Logger
	tracer   trace.Tracer
	registry *Registry
	actions  Actions
	pending  PendingIntents
	flags    CommitFlags
}

func NewAccumulator(registry *Registry, actions Actions, logger *zap.Logger) *Accumulator {
	return &Accumulator{
		logger:   logger.With(zap.String(logg.Layer, accumulatorName)),
		tracer:   otel.Tracer(accumulatorTracer),
		registry: registry,
		actions:  actions,
	}
}

func (a *Accumulator) Tools() []entity.ToolDescriptor {
	return a.registry.Describe()
}

// ApplyToolCall stores the decoded intent of a tool call, replacing any earlier value
// of the same kind. It returns false without touching state for unknown tools.
func (a *Accumulator) ApplyToolCall(name, rawArguments string) (bool, error) {
	logger := a.logger.With(zap.String(logg.Operation, "ApplyToolCall"), zap.String(logg.Tool, name))

	in, matched, err := a.registry.Decode(name, rawArguments)
	if err != nil {
		logger.Warn("Tool arguments rejected", zap.Error(err))

		return true, err
	}

	if !matched {
		logger.Debug("Unknown tool ignored")

		return false, nil
	}

	a.pending.store(in)
	logger.Debug("Intent stored")

	return true, nil
}

// CommitPending runs every action group whose prerequisites are met, in the order
// search, filters, selection. A failing group keeps its flag unset and aborts the commit.
func (a *Accumulator) CommitPending(ctx context.Context, onStep StepFunc) (err error) {
	const op = "CommitPending"
	logger := a.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, a.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if a.pending.searchReady() && !a.flags.SearchCommitted {
		report(onStep, StepSearching)
		step.AddEvent("searching destination", attribute.String("destination", a.pending.Destination.Name))

		if err := a.actions.SearchDestination(ctx, *a.pending.Destination, *a.pending.Dates, *a.pending.Guests); err != nil {
			return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
				apperr.MetaReason: "search_failed",
				apperr.MetaStage:  apperr.StageSearch,
			})
		}

		a.flags.SearchCommitted = true
		logger.Info("Search committed")
	}

	// Filters only check their own presence; the prompt and tool order keep them after the search.
	if a.pending.Filters != nil && !a.flags.FiltersCommitted {
		report(onStep, StepFiltering)
		step.AddEvent("applying filters")

		if err := a.actions.ApplyFilters(ctx, *a.pending.Filters); err != nil {
			return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
				apperr.MetaReason: "filters_failed",
				apperr.MetaStage:  apperr.StageFilters,
			})
		}

		a.flags.FiltersCommitted = true
		logger.Info("Filters committed")
	}

	if a.pending.BookRequested && !a.flags.BookingCommitted && a.flags.SearchCommitted && a.flags.FiltersCommitted {
		report(onStep, StepSelecting)
		step.AddEvent("selecting top result")

		if err := a.actions.SelectTopResult(ctx); err != nil {
			return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
				apperr.MetaReason: "selection_failed",
				apperr.MetaStage:  apperr.StageSelection,
			})
		}

		a.flags.BookingCommitted = true
		logger.Info("Booking committed")
	}

	return nil
}

func (a *Accumulator) Flags() CommitFlags {
	return a.flags
}

// Pending returns a copy of the stored intents.
func (a *Accumulator) Pending() PendingIntents {
	p := PendingIntents{BookRequested: a.pending.BookRequested}

	if a.pending.Destination != nil {
		v := *a.pending.Destination
		p.Destination = &v
	}

	if a.pending.Dates != nil {
		v := *a.pending.Dates
		p.Dates = &v
	}

	if a.pending.Guests != nil {
		v := *a.pending.Guests
		p.Guests = &v
	}

	if a.pending.Filters != nil {
		v := *a.pending.Filters
		p.Filters = &v
	}

	return p
}

func report(onStep StepFunc, name string) {
	if onStep != nil {
		onStep(name)
	}
}
