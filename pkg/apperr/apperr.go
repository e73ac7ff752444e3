package apperr

import (
	"errors"
	"fmt"
)

const (
	MetaReason   = "reason"
	MetaStage    = "stage"
	MetaField    = "field"
	MetaTool     = "tool"
	MetaElement  = "element"
	MetaSelector = "selector"
	MetaURL      = "url"

	StageBrowser     = "browser"
	StageAI          = "ai"
	StageLogin       = "login"
	StageSearch      = "search"
	StageFilters     = "filters"
	StageSelection   = "selection"
	StageNavigation  = "navigation"
	StageInteraction = "interaction"

	CodeInternal        = "internal"
	CodeInvalidArgument = "invalid_argument"
	CodeTimeout         = "timeout"
	CodeDecode          = "decode_failed"
	CodeAssertion       = "assertion_failed"
	CodeMaxSteps        = "max_steps"
	CodeSessionClosed   = "session_closed"
	CodeCancelledByUser = "cancelled_by_user"
	CodeBrowserNotReady = "browser_not_ready"
	CodeActionFailed    = "action_failed"
	CodeAIError         = "ai_error"
)

type Error struct {
	Op       string
	Code     string
	Err      error
	Metadata map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(op, code string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &Error{
		Op:       op,
		Code:     code,
		Err:      err,
		Metadata: metadata,
	}
}

func WrapWithReason(op, code string, err error, reason string) error {
	return Wrap(op, code, err, map[string]any{
		MetaReason: reason,
	})
}

func WrapErrorWithReason(op, code, reason string) error {
	return Wrap(op, code, errors.New(reason), map[string]any{
		MetaReason: reason,
	})
}

func InvalidReqError(op, field string, err error) error {
	return Wrap(op, CodeInvalidArgument, err, map[string]any{
		MetaField:  field,
		MetaReason: "invalid_request",
	})
}

// DecodeError reports tool arguments that do not fit the tool's schema.
func DecodeError(op, tool string, err error) error {
	return Wrap(op, CodeDecode, fmt.Errorf("decode %s arguments: %w", tool, err), map[string]any{
		MetaReason: "decode_failed",
		MetaTool:   tool,
	})
}

// AssertionError reports a page that is not in the state a sequence expects.
func AssertionError(op, reason string, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	metadata[MetaReason] = reason

	return Wrap(op, CodeAssertion, errors.New(reason), metadata)
}

func TimeoutError(op string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	if _, ok := metadata[MetaReason]; !ok {
		metadata[MetaReason] = "timeout"
	}

	return Wrap(op, CodeTimeout, err, metadata)
}

// CodeOf returns the code of the outermost *Error in the chain, or "" if there is none.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return ""
}

// HasCode reports whether any *Error in the chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *Error
		if !errors.As(err, &appErr) {
			return false
		}

		if appErr.Code == code {
			return true
		}

		err = appErr.Err
	}

	return false
}
