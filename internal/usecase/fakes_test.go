package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"trip-agent/internal/booking"
	"trip-agent/internal/config"
	"trip-agent/internal/entity"
	"trip-agent/internal/ports"

	"go.uber.org/zap/zaptest"
)

// fakeChat replays scripted assistant messages; the last one repeats once the script runs out.
type fakeChat struct {
	replies  []entity.Message
	err      error
	requests []entity.ChatRequest
	onCall   func(call int)
}

func (c *fakeChat) Complete(_ context.Context, req entity.ChatRequest) (*entity.ChatResponse, error) {
	snapshot := req
	snapshot.Messages = append([]entity.Message(nil), req.Messages...)
	c.requests = append(c.requests, snapshot)

	if c.onCall != nil {
		c.onCall(len(c.requests))
	}

	if c.err != nil {
		return nil, c.err
	}

	i := len(c.requests) - 1
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}

	return &entity.ChatResponse{Message: c.replies[i]}, nil
}

func reply(content string, calls ...entity.ToolCall) entity.Message {
	return entity.Message{Role: entity.RoleAssistant, Content: content, ToolCalls: calls}
}

func call(id, name, args string) entity.ToolCall {
	return entity.ToolCall{ID: id, Name: name, Arguments: args}
}

// fakeBrowser finds every element and answers every wait immediately.
type fakeBrowser struct {
	notReady  bool
	navigated []string
	urlWaits  []bool
	clicks    int
}

type fakeElement struct {
	browser *fakeBrowser
}

func (e *fakeElement) Click(_ context.Context) error {
	e.browser.clicks++

	return nil
}

func (e *fakeElement) Type(_ context.Context, _ string, _ time.Duration) error { return nil }

func (e *fakeElement) Text(_ context.Context) (string, error) { return "", nil }

func (e *fakeElement) Attribute(_ context.Context, _ string) (string, error) { return "", nil }

func (b *fakeBrowser) Navigate(_ context.Context, url string, waitUntil entity.WaitUntil) error {
	b.navigated = append(b.navigated, url+" "+string(waitUntil))

	return nil
}

func (b *fakeBrowser) WaitForElement(_ context.Context, _ entity.ElementQuery) (ports.Element, error) {
	return &fakeElement{browser: b}, nil
}

func (b *fakeBrowser) WaitForURL(_ context.Context, match func(string) bool, _ time.Duration, ignoreNavigationErrors bool) error {
	b.urlWaits = append(b.urlWaits, ignoreNavigationErrors && match(testHomeURL) && !match(testLoginURL))

	return nil
}

func (b *fakeBrowser) ExpectResponse(_ context.Context, _ string, _ time.Duration, trigger func() error) error {
	return trigger()
}

func (b *fakeBrowser) WaitForCondition(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (b *fakeBrowser) Evaluate(_ context.Context, _ string, _ ports.Element) (any, error) {
	return nil, nil
}

func (b *fakeBrowser) Launch(_ context.Context) error { return nil }

func (b *fakeBrowser) Close(_ context.Context) error { return nil }

func (b *fakeBrowser) IsReady() bool { return !b.notReady }

type statusRecorder struct {
	mu       sync.Mutex
	statuses []entity.Status
}

func (r *statusRecorder) ReportStatus(status entity.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses = append(r.statuses, status)
}

// recordingActions stands in for the page sequences in conversation loop tests.
type recordingActions struct {
	searches   int
	filters    int
	selections int
	searchErr  error
}

func (a *recordingActions) SearchDestination(_ context.Context, _ booking.Destination, _ booking.DateRange, _ booking.GuestCounts) error {
	if a.searchErr != nil {
		return a.searchErr
	}

	a.searches++

	return nil
}

func (a *recordingActions) ApplyFilters(_ context.Context, _ booking.Filters) error {
	a.filters++

	return nil
}

func (a *recordingActions) SelectTopResult(_ context.Context) error {
	a.selections++

	return nil
}

const (
	testLoginURL = "https://example.test/login"
	testHomeURL  = "https://example.test/"
	testPrompt   = "system: collect the trip, then say DONE"
)

func testConfig() *config.Config {
	return &config.Config{
		AppConfig: &config.AppConfig{},
		AIConfig:  &config.AIConfig{Model: "test-model"},
		AgentConfig: &config.AgentConfig{
			SystemPrompt:     testPrompt,
			TerminalSentinel: "DONE",
			StepInterval:     time.Millisecond,
			MaxSteps:         10,
		},
		SiteConfig: &config.SiteConfig{
			LoginURL: testLoginURL,
			HomeURL:  testHomeURL,
		},
		TimingConfig: &config.TimingConfig{
			ElementTimeout:  time.Second,
			LoginTimeout:    time.Second,
			ResponseTimeout: time.Second,
			OptionalWindow:  time.Millisecond,
			StepperSettle:   time.Millisecond,
		},
	}
}

func newTestAgent(t *testing.T, cfg *config.AgentConfig, chat ports.ChatClient, actions booking.Actions, onStep booking.StepFunc) *Agent {
	t.Helper()

	logger := zaptest.NewLogger(t)

	return NewAgent(AgentParams{
		Config:      cfg,
		Logger:      logger,
		Chat:        chat,
		Accumulator: booking.NewAccumulator(booking.NewRegistry(), actions, logger),
		OnStep:      onStep,
	})
}

func newTestSessionService(t *testing.T, cfg *config.Config, browser *fakeBrowser, chat ports.ChatClient) *SessionService {
	t.Helper()

	return NewSessionService(SessionServiceParams{
		Config:  cfg,
		Logger:  zaptest.NewLogger(t),
		Browser: browser,
		Chat:    chat,
	})
}
