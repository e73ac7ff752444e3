package booking

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"trip-agent/internal/config"
	"trip-agent/internal/entity"
	"trip-agent/internal/ports"
	"trip-agent/pkg/apperr"

	"go.uber.org/zap/zaptest"
)

var guestCategoryNames = []string{"adults", "children", "infants", "pets"}

// fakePage answers every element wait unless the selector is marked missing and
// keeps guest counters in step with stepper clicks.
type fakePage struct {
	missing         map[string]bool
	counters        map[string]int
	counterOverride map[string]string
	failResponse    map[string]bool
	clicks          map[string]int
	typed           map[string]string
	attributes      map[string]string
	events          []string
	queries         []entity.ElementQuery
}

func newFakePage() *fakePage {
	return &fakePage{
		missing:         make(map[string]bool),
		counters:        make(map[string]int),
		counterOverride: make(map[string]string),
		failResponse:    make(map[string]bool),
		clicks:          make(map[string]int),
		typed:           make(map[string]string),
		attributes:      make(map[string]string),
	}
}

type fakeElement struct {
	page     *fakePage
	selector string
}

func (e *fakeElement) Click(_ context.Context) error {
	p := e.page
	p.clicks[e.selector]++
	p.events = append(p.events, "click "+e.selector)

	for _, name := range guestCategoryNames {
		if e.selector == stepperIncreaseSelector(name) {
			p.counters[name]++
		}
	}

	return nil
}

func (e *fakeElement) Type(_ context.Context, text string, _ time.Duration) error {
	e.page.typed[e.selector] += text
	e.page.events = append(e.page.events, "type "+e.selector+" "+text)

	return nil
}

func (e *fakeElement) Text(_ context.Context) (string, error) {
	for _, name := range guestCategoryNames {
		if e.selector == stepperValueSelector(name) {
			if v, ok := e.page.counterOverride[name]; ok {
				return v, nil
			}

			return strconv.Itoa(e.page.counters[name]), nil
		}
	}

	return "", nil
}

func (e *fakeElement) Attribute(_ context.Context, name string) (string, error) {
	e.page.events = append(e.page.events, "attribute "+e.selector+" "+name)

	return e.page.attributes[e.selector+"@"+name], nil
}

func (p *fakePage) Navigate(_ context.Context, url string, _ entity.WaitUntil) error {
	p.events = append(p.events, "navigate "+url)

	return nil
}

func (p *fakePage) WaitForElement(_ context.Context, query entity.ElementQuery) (ports.Element, error) {
	p.queries = append(p.queries, query)

	if p.missing[query.Selector] {
		return nil, apperr.TimeoutError("WaitForElement", errors.New("timeout exceeded"), map[string]any{
			apperr.MetaSelector: query.Selector,
		})
	}

	return &fakeElement{page: p, selector: query.Selector}, nil
}

func (p *fakePage) WaitForURL(_ context.Context, _ func(string) bool, _ time.Duration, _ bool) error {
	return nil
}

func (p *fakePage) ExpectResponse(_ context.Context, urlPart string, _ time.Duration, trigger func() error) error {
	p.events = append(p.events, "expect "+urlPart)

	if err := trigger(); err != nil {
		return err
	}

	if p.failResponse[urlPart] {
		return apperr.TimeoutError("ExpectResponse", errors.New("no response"), nil)
	}

	return nil
}

func (p *fakePage) WaitForCondition(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (p *fakePage) Evaluate(_ context.Context, script string, el ports.Element) (any, error) {
	selector := ""
	if fe, ok := el.(*fakeElement); ok {
		selector = fe.selector
	}

	p.events = append(p.events, "eval "+selector+" "+script)

	return nil, nil
}

func testTimings() *config.TimingConfig {
	return &config.TimingConfig{
		ElementTimeout:  time.Second,
		LoginTimeout:    time.Second,
		ResponseTimeout: time.Second,
		OptionalWindow:  10 * time.Millisecond,
		StepperSettle:   10 * time.Millisecond,
	}
}

func newTestActions(t *testing.T, page *fakePage) *PageActions {
	return NewPageActions(page, testTimings(), zaptest.NewLogger(t))
}

type searchCall struct {
	destination Destination
	dates       DateRange
	guests      GuestCounts
}

// fakeActions records committed sequences and can fail any of them.
type fakeActions struct {
	searches   []searchCall
	filters    []Filters
	selections int
	events     *[]string

	searchErr error
	filterErr error
	selectErr error
}

func (f *fakeActions) log(event string) {
	if f.events != nil {
		*f.events = append(*f.events, event)
	}
}

func (f *fakeActions) SearchDestination(_ context.Context, destination Destination, dates DateRange, guests GuestCounts) error {
	f.log("search")

	if f.searchErr != nil {
		return f.searchErr
	}

	f.searches = append(f.searches, searchCall{destination: destination, dates: dates, guests: guests})

	return nil
}

func (f *fakeActions) ApplyFilters(_ context.Context, filters Filters) error {
	f.log("filters")

	if f.filterErr != nil {
		return f.filterErr
	}

	f.filters = append(f.filters, filters)

	return nil
}

func (f *fakeActions) SelectTopResult(_ context.Context) error {
	f.log("select")

	if f.selectErr != nil {
		return f.selectErr
	}

	f.selections++

	return nil
}
