package ports

import (
	"context"
	"time"

	"trip-agent/internal/entity"
)

type Element interface {
	Click(ctx context.Context) error
	Type(ctx context.Context, text string, delay time.Duration) error
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
}

// PageAutomation drives the single live page of a session.
// Waits fail with apperr.CodeTimeout once their bound is exceeded.
type PageAutomation interface {
	Navigate(ctx context.Context, url string, waitUntil entity.WaitUntil) error
	WaitForElement(ctx context.Context, query entity.ElementQuery) (Element, error)
	WaitForURL(ctx context.Context, match func(url string) bool, timeout time.Duration, ignoreNavigationErrors bool) error
	// ExpectResponse arms a listener for a response whose URL contains urlPart, runs trigger and waits.
	ExpectResponse(ctx context.Context, urlPart string, timeout time.Duration, trigger func() error) error
	WaitForCondition(ctx context.Context, script string, arg any, timeout time.Duration) error
	// Evaluate runs script as a function of el (may be nil).
	Evaluate(ctx context.Context, script string, el Element) (any, error)
}

type BrowserManager interface {
	PageAutomation
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	IsReady() bool
}

type ChatClient interface {
	Complete(ctx context.Context, req entity.ChatRequest) (*entity.ChatResponse, error)
}

type StatusReporter interface {
	ReportStatus(status entity.Status)
}
