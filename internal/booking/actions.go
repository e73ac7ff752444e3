package booking

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"trip-agent/internal/config"
	"trip-agent/internal/entity"
	"trip-agent/internal/ports"
	"trip-agent/pkg/apperr"
	"trip-agent/pkg/logg"
	"trip-agent/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	pageActionsName   = "PageActions"
	pageActionsTracer = "booking.actions"
)

// PageActions performs the search, filter and selection sequences on the live page.
type PageActions struct {
	page    ports.PageAutomation
	timings *config.TimingConfig
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewPageActions(page ports.PageAutomation, timings *config.TimingConfig, logger *zap.Logger) *PageActions {
	return &PageActions{
		page:    page,
		timings: timings,
		logger:  logger.With(zap.String(logg.Layer, pageActionsName)),
		tracer:  otel.Tracer(pageActionsTracer),
	}
}

func (a *PageActions) SearchDestination(ctx context.Context, destination Destination, dates DateRange, guests GuestCounts) (err error) {
	const op = "SearchDestination"
	logger := a.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, a.tracer, logger, op,
		attribute.String("destination", destination.Name),
		attribute.String("check_in", dates.CheckIn),
		attribute.String("check_out", dates.CheckOut))
	defer func() {
		step.End(err)
	}()

	if err := a.click(ctx, op, entity.ElementQuery{Name: "search input button", Selector: selSearchAffordance, Visible: true}); err != nil {
		return err
	}

	// Only some layouts show this intermediate button.
	if btn, ok := a.optional(ctx, entity.ElementQuery{Name: "search destinations button", Selector: xpathSearchDestinations, XPath: true}); ok {
		if err := btn.Click(ctx); err != nil {
			logger.Debug("Search destinations button not clickable", zap.Error(err))
		}
	}

	step.AddEvent("typing destination")

	input, err := a.require(ctx, op, entity.ElementQuery{Name: "destination input", Selector: selDestinationInput, Visible: true})
	if err != nil {
		return err
	}

	if err := input.Click(ctx); err != nil {
		return a.actionFailed(op, "destination input", err)
	}

	if err := input.Type(ctx, destination.Name, a.timings.KeystrokeDelay); err != nil {
		return a.actionFailed(op, "destination input", err)
	}

	if err := a.click(ctx, op, entity.ElementQuery{Name: "destination suggestion", Selector: destinationOptionXPath(destination.Name), XPath: true}); err != nil {
		return err
	}

	step.AddEvent("selecting dates")

	if _, err := a.require(ctx, op, entity.ElementQuery{Name: "dates panel", Selector: xpathWhenPanel, XPath: true, Visible: true}); err != nil {
		return err
	}

	if err := a.click(ctx, op, entity.ElementQuery{Name: "check-in date " + dates.CheckIn, Selector: calendarDaySelector(dates.CheckIn)}); err != nil {
		return err
	}

	if err := a.click(ctx, op, entity.ElementQuery{Name: "check-out date " + dates.CheckOut, Selector: calendarDaySelector(dates.CheckOut)}); err != nil {
		return err
	}

	if err := a.click(ctx, op, entity.ElementQuery{Name: "dates next button", Selector: selDatesNext}); err != nil {
		return err
	}

	step.AddEvent("selecting guests")

	if _, err := a.require(ctx, op, entity.ElementQuery{Name: "guests panel", Selector: xpathWhoPanel, XPath: true, Visible: true}); err != nil {
		return err
	}

	for _, category := range guests.categories() {
		if category.count <= 0 {
			continue
		}

		if err := a.increaseGuests(ctx, category); err != nil {
			return err
		}
	}

	step.AddEvent("submitting search")

	submit, err := a.require(ctx, op, entity.ElementQuery{Name: "search button", Selector: selSearchSubmit})
	if err != nil {
		return err
	}

	if err := a.page.ExpectResponse(ctx, searchResponsePart, a.timings.ResponseTimeout, func() error {
		return submit.Click(ctx)
	}); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:  "search_results_not_loaded",
			apperr.MetaStage:   apperr.StageSearch,
			apperr.MetaElement: "search button",
		})
	}

	logger.Info("Search submitted", zap.String("destination", destination.Name))

	return nil
}

// increaseGuests clicks a stepper count times and checks the counter it drives.
func (a *PageActions) increaseGuests(ctx context.Context, category guestCategory) error {
	const op = "increaseGuests"
	logger := a.logger.With(zap.String(logg.Operation, op), zap.String("category", category.name))

	stepper, err := a.require(ctx, op, entity.ElementQuery{
		Name:     category.name + " increase button",
		Selector: stepperIncreaseSelector(category.name),
	})
	if err != nil {
		return err
	}

	valueSelector := stepperValueSelector(category.name)

	for i := 1; i <= category.count; i++ {
		if err := stepper.Click(ctx); err != nil {
			return a.actionFailed(op, category.name+" increase button", err)
		}

		// Waiting for the counter replaces a fixed pause; the read-back below is what decides.
		if err := a.page.WaitForCondition(ctx, scriptTextEquals, []any{valueSelector, strconv.Itoa(i)}, a.timings.StepperSettle); err != nil {
			logger.Debug("Counter did not settle", zap.Int("want", i), zap.Error(err))
		}
	}

	counter, err := a.require(ctx, op, entity.ElementQuery{Name: category.name + " counter", Selector: valueSelector})
	if err != nil {
		return err
	}

	value, err := counter.Text(ctx)
	if err != nil {
		return a.actionFailed(op, category.name+" counter", err)
	}

	want := strconv.Itoa(category.count)
	if strings.TrimSpace(value) != want {
		return apperr.AssertionError(op, fmt.Sprintf("%s guests do not match: %q vs %s", category.name, value, want), map[string]any{
			apperr.MetaElement: category.name + " counter",
			apperr.MetaStage:   apperr.StageSearch,
		})
	}

	return nil
}

func (a *PageActions) ApplyFilters(ctx context.Context, filters Filters) (err error) {
	const op = "ApplyFilters"
	logger := a.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, a.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if err := a.click(ctx, op, entity.ElementQuery{Name: "show filters button", Selector: selShowFilters, Visible: true}); err != nil {
		return err
	}

	if _, err := a.require(ctx, op, entity.ElementQuery{Name: "filters header", Selector: xpathFiltersHeader, XPath: true, Visible: true}); err != nil {
		return err
	}

	if filters.TypeOfPlace != nil {
		step.AddEvent("selecting type of place", attribute.String("type_of_place", string(*filters.TypeOfPlace)))

		name := "type of place button " + string(*filters.TypeOfPlace)
		if err := a.scrollAndClick(ctx, op, entity.ElementQuery{Name: name, Selector: placeTypeSelector(*filters.TypeOfPlace), Visible: true}, scriptScrollCenter); err != nil {
			return err
		}
	}

	if filters.PriceMin != nil {
		step.AddEvent("setting minimum price")

		if err := a.replaceNumber(ctx, op, entity.ElementQuery{Name: "minimum price input", Selector: selPriceMin, Visible: true}, *filters.PriceMin); err != nil {
			return err
		}
	}

	if filters.PriceMax != nil {
		step.AddEvent("setting maximum price")

		if err := a.replaceNumber(ctx, op, entity.ElementQuery{Name: "maximum price input", Selector: selPriceMax, Visible: true}, *filters.PriceMax); err != nil {
			return err
		}
	}

	// The instant book toggle is only ever switched on; false leaves the page as it is.
	if filters.InstantBook != nil && *filters.InstantBook {
		step.AddEvent("enabling instant book")

		if err := a.scrollAndClick(ctx, op, entity.ElementQuery{Name: "instant book button", Selector: selInstantBook, Visible: true}, scriptScrollAboveFooter); err != nil {
			return err
		}
	}

	// Submit even when nothing changed so the panel closes.
	submit, err := a.require(ctx, op, entity.ElementQuery{Name: "show results link", Selector: selFiltersSubmit, Visible: true})
	if err != nil {
		return err
	}

	if err := a.page.ExpectResponse(ctx, searchResponsePart, a.timings.ResponseTimeout, func() error {
		return submit.Click(ctx)
	}); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:  "filtered_results_not_loaded",
			apperr.MetaStage:   apperr.StageFilters,
			apperr.MetaElement: "show results link",
		})
	}

	logger.Info("Filters applied")

	return nil
}

func (a *PageActions) SelectTopResult(ctx context.Context) (err error) {
	const op = "SelectTopResult"
	logger := a.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, a.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	link, err := a.require(ctx, op, entity.ElementQuery{Name: "top result link", Selector: xpathTopResult, XPath: true, Visible: true})
	if err != nil {
		return err
	}

	if _, err := a.page.Evaluate(ctx, scriptScrollCenter, link); err != nil {
		return a.actionFailed(op, "top result link", err)
	}

	if href, err := link.Attribute(ctx, "href"); err == nil && href != "" {
		step.SetAttributes(attribute.String("listing", href))
		logger.Info("Opening top result", zap.String(logg.URL, href))
	}

	step.AddEvent("opening top result")

	if err := a.page.ExpectResponse(ctx, checkoutResponsePart, a.timings.ResponseTimeout, func() error {
		return link.Click(ctx)
	}); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:  "listing_not_loaded",
			apperr.MetaStage:   apperr.StageSelection,
			apperr.MetaElement: "top result link",
		})
	}

	if closeBtn, ok := a.optional(ctx, entity.ElementQuery{Name: "translation dialog close button", Selector: selTranslationClose}); ok {
		step.AddEvent("dismissing translation dialog")

		if err := closeBtn.Click(ctx); err != nil {
			logger.Debug("Translation dialog not dismissed", zap.Error(err))
		}
	}

	if err := a.scrollAndClick(ctx, op, entity.ElementQuery{Name: "reserve button", Selector: selBookButton, Visible: true}, scriptScrollCenter); err != nil {
		return err
	}

	logger.Info("Top result selected")

	return nil
}

// require waits for an element and turns any failure into an assertion naming it.
func (a *PageActions) require(ctx context.Context, op string, query entity.ElementQuery) (ports.Element, error) {
	if query.Timeout == 0 {
		query.Timeout = a.timings.ElementTimeout
	}

	el, err := a.page.WaitForElement(ctx, query)
	if err == nil && el == nil {
		err = fmt.Errorf("no element matched")
	}

	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeAssertion, fmt.Errorf("%s not found: %w", query.Name, err), map[string]any{
			apperr.MetaReason:   "element_missing",
			apperr.MetaElement:  query.Name,
			apperr.MetaSelector: query.Selector,
		})
	}

	return el, nil
}

// optional waits at most the optional window; absence is not an error.
func (a *PageActions) optional(ctx context.Context, query entity.ElementQuery) (ports.Element, bool) {
	query.Timeout = a.timings.OptionalWindow

	el, err := a.page.WaitForElement(ctx, query)
	if err != nil || el == nil {
		a.logger.Debug("Optional element absent", zap.String("element", query.Name))

		return nil, false
	}

	return el, true
}

func (a *PageActions) click(ctx context.Context, op string, query entity.ElementQuery) error {
	el, err := a.require(ctx, op, query)
	if err != nil {
		return err
	}

	if err := el.Click(ctx); err != nil {
		return a.actionFailed(op, query.Name, err)
	}

	return nil
}

func (a *PageActions) scrollAndClick(ctx context.Context, op string, query entity.ElementQuery, scrollScript string) error {
	el, err := a.require(ctx, op, query)
	if err != nil {
		return err
	}

	if _, err := a.page.Evaluate(ctx, scrollScript, el); err != nil {
		return a.actionFailed(op, query.Name, err)
	}

	if err := el.Click(ctx); err != nil {
		return a.actionFailed(op, query.Name, err)
	}

	return nil
}

// replaceNumber clears a numeric input and types value in its place.
func (a *PageActions) replaceNumber(ctx context.Context, op string, query entity.ElementQuery, value int) error {
	el, err := a.require(ctx, op, query)
	if err != nil {
		return err
	}

	if _, err := a.page.Evaluate(ctx, scriptScrollCenter, el); err != nil {
		return a.actionFailed(op, query.Name, err)
	}

	if _, err := a.page.Evaluate(ctx, scriptClearInput, el); err != nil {
		return a.actionFailed(op, query.Name, err)
	}

	if err := el.Type(ctx, strconv.Itoa(value), 0); err != nil {
		return a.actionFailed(op, query.Name, err)
	}

	return nil
}

func (a *PageActions) actionFailed(op, element string, err error) error {
	return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
		apperr.MetaReason:  "interaction_failed",
		apperr.MetaStage:   apperr.StageInteraction,
		apperr.MetaElement: element,
	})
}
