package browser

import (
	"context"
	"errors"
	"regexp"
	"time"

	"trip-agent/internal/entity"
	"trip-agent/internal/ports"
	"trip-agent/pkg/apperr"
	"trip-agent/pkg/logg"
	"trip-agent/pkg/tracing"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const xpathPrefix = "xpath="

func (m *Manager) Navigate(ctx context.Context, url string, waitUntil entity.WaitUntil) (err error) {
	const op = "Navigate"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	page, err := m.activePage(ctx, op)
	if err != nil {
		return err
	}

	step.AddEvent("navigating to URL")

	_, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntilState(waitUntil),
	})
	if err != nil {
		return pageError(op, err, "goto_failed", map[string]any{
			apperr.MetaStage: apperr.StageNavigation,
			apperr.MetaURL:   url,
		})
	}

	step.AddEvent("navigation completed")

	return nil
}

func (m *Manager) WaitForElement(ctx context.Context, query entity.ElementQuery) (el ports.Element, err error) {
	const op = "WaitForElement"
	selector := selectorFor(query)
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op,
		attribute.String("element", query.Name),
		attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	page, err := m.activePage(ctx, op)
	if err != nil {
		return nil, err
	}

	state := playwright.WaitForSelectorStateAttached
	if query.Visible {
		state = playwright.WaitForSelectorStateVisible
	}

	options := playwright.PageWaitForSelectorOptions{State: state}
	if query.Timeout > 0 {
		options.Timeout = milliseconds(query.Timeout)
	}

	handle, err := page.WaitForSelector(selector, options)
	if err != nil {
		return nil, pageError(op, err, "element_wait_failed", map[string]any{
			apperr.MetaStage:    apperr.StageInteraction,
			apperr.MetaElement:  query.Name,
			apperr.MetaSelector: selector,
		})
	}

	if handle == nil {
		return nil, apperr.TimeoutError(op, errors.New("element did not appear"), map[string]any{
			apperr.MetaElement:  query.Name,
			apperr.MetaSelector: selector,
		})
	}

	return &element{handle: handle, name: query.Name, selector: selector}, nil
}

// WaitForURL waits until match accepts the page URL. With ignoreNavigationErrors,
// aborted navigations restart the wait instead of failing it.
func (m *Manager) WaitForURL(ctx context.Context, match func(url string) bool, timeout time.Duration, ignoreNavigationErrors bool) (err error) {
	const op = "WaitForURL"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op,
		attribute.Int64("timeout_ms", timeout.Milliseconds()))
	defer func() {
		step.End(err)
	}()

	deadline := time.Now().Add(timeout)

	for {
		page, err := m.activePage(ctx, op)
		if err != nil {
			return err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return apperr.TimeoutError(op, errors.New("url did not match in time"), map[string]any{
				apperr.MetaURL: page.URL(),
			})
		}

		err = page.WaitForURL(match, playwright.PageWaitForURLOptions{
			Timeout:   milliseconds(remaining),
			WaitUntil: playwright.WaitUntilStateCommit,
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, playwright.ErrTimeout) || !ignoreNavigationErrors {
			return pageError(op, err, "url_wait_failed", map[string]any{
				apperr.MetaStage: apperr.StageNavigation,
				apperr.MetaURL:   page.URL(),
			})
		}

		logger.Debug("Navigation error ignored while waiting for URL", zap.Error(err))
	}
}

func (m *Manager) ExpectResponse(ctx context.Context, urlPart string, timeout time.Duration, trigger func() error) (err error) {
	const op = "ExpectResponse"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, urlPart))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("url_part", urlPart))
	defer func() {
		step.End(err)
	}()

	page, err := m.activePage(ctx, op)
	if err != nil {
		return err
	}

	var triggerErr error

	_, err = page.ExpectResponse(regexp.MustCompile(regexp.QuoteMeta(urlPart)), func() error {
		triggerErr = trigger()

		return triggerErr
	}, playwright.PageExpectResponseOptions{Timeout: milliseconds(timeout)})

	if triggerErr != nil {
		return triggerErr
	}

	if err != nil {
		return pageError(op, err, "response_wait_failed", map[string]any{
			apperr.MetaStage: apperr.StageNavigation,
			apperr.MetaURL:   urlPart,
		})
	}

	step.AddEvent("response received")

	return nil
}

func (m *Manager) WaitForCondition(ctx context.Context, script string, arg any, timeout time.Duration) (err error) {
	const op = "WaitForCondition"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	page, err := m.activePage(ctx, op)
	if err != nil {
		return err
	}

	_, err = page.WaitForFunction(script, arg, playwright.PageWaitForFunctionOptions{
		Timeout: milliseconds(timeout),
	})
	if err != nil {
		return pageError(op, err, "condition_wait_failed", nil)
	}

	return nil
}

func (m *Manager) Evaluate(ctx context.Context, script string, el ports.Element) (result any, err error) {
	const op = "Evaluate"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	page, err := m.activePage(ctx, op)
	if err != nil {
		return nil, err
	}

	if el == nil {
		result, err = page.Evaluate(script)
	} else {
		handle, ok := el.(*element)
		if !ok {
			return nil, apperr.InvalidReqError(op, "element", errors.New("element does not belong to this browser"))
		}

		result, err = page.Evaluate(script, handle.handle)
	}

	if err != nil {
		return nil, pageError(op, err, "evaluate_failed", nil)
	}

	return result, nil
}

// element wraps a playwright handle found by WaitForElement.
type element struct {
	handle   playwright.ElementHandle
	name     string
	selector string
}

func (e *element) Click(ctx context.Context) error {
	const op = "Click"

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.handle.Click(); err != nil {
		return pageError(op, err, "click_failed", e.metadata())
	}

	return nil
}

func (e *element) Type(ctx context.Context, text string, delay time.Duration) error {
	const op = "Type"

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.handle.Type(text, playwright.ElementHandleTypeOptions{
		Delay: playwright.Float(float64(delay.Milliseconds())),
	}); err != nil {
		return pageError(op, err, "type_failed", e.metadata())
	}

	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	const op = "Text"

	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := e.handle.TextContent()
	if err != nil {
		return "", pageError(op, err, "text_content_failed", e.metadata())
	}

	return text, nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	const op = "Attribute"

	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, err := e.handle.GetAttribute(name)
	if err != nil {
		return "", pageError(op, err, "attribute_failed", e.metadata())
	}

	return value, nil
}

func (e *element) metadata() map[string]any {
	return map[string]any{
		apperr.MetaStage:    apperr.StageInteraction,
		apperr.MetaElement:  e.name,
		apperr.MetaSelector: e.selector,
	}
}

func selectorFor(query entity.ElementQuery) string {
	if query.XPath {
		return xpathPrefix + query.Selector
	}

	return query.Selector
}

func waitUntilState(waitUntil entity.WaitUntil) *playwright.WaitUntilState {
	switch waitUntil {
	case entity.WaitUntilNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	case entity.WaitUntilDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	default:
		return playwright.WaitUntilStateLoad
	}
}

func milliseconds(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

// pageError maps playwright timeouts to apperr.CodeTimeout and everything else to
// apperr.CodeActionFailed.
func pageError(op string, err error, reason string, metadata map[string]any) error {
	meta := map[string]any{apperr.MetaReason: reason}
	for k, v := range metadata {
		meta[k] = v
	}

	if errors.Is(err, playwright.ErrTimeout) {
		return apperr.Wrap(op, apperr.CodeTimeout, err, meta)
	}

	return apperr.Wrap(op, apperr.CodeActionFailed, err, meta)
}
