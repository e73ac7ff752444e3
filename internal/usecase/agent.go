package usecase

import (
	"context"
	"strings"

	"trip-agent/internal/booking"
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
	agentName   = "ConversationLoop"
	agentTracer = "usecase.agent"

	toolAckSuccess = "Success"
	toolAckUnknown = "Unknown tool"
)

type LoopState string

const (
	StateIdle               LoopState = "idle"
	StateAwaitingCompletion LoopState = "awaiting_completion"
	StateDone               LoopState = "done"
	StateFailed             LoopState = "failed"
)

// StepResult carries the assistant text only once the terminal sentinel was seen.
type StepResult struct {
	Done bool
	Text string
}

// Agent drives one booking conversation. It owns the message history and the
// accumulator of a single session and is not safe for concurrent use.
type Agent struct {
	config      *config.AgentConfig
	logger      *zap.Logger
	tracer      trace.Tracer
	chat        ports.ChatClient
	accumulator *booking.Accumulator
	onStep      booking.StepFunc
	messages    []entity.Message
	state       LoopState
}

type AgentParams struct {
	Config      *config.AgentConfig
	Logger      *zap.Logger
	Chat        ports.ChatClient
	Accumulator *booking.Accumulator
	OnStep      booking.StepFunc
}

func NewAgent(params AgentParams) *Agent {
	return &Agent{
		config:      params.Config,
		logger:      params.Logger.With(zap.String(logg.Layer, agentName)),
		tracer:      otel.Tracer(agentTracer),
		chat:        params.Chat,
		accumulator: params.Accumulator,
		onStep:      params.OnStep,
		state:       StateIdle,
	}
}

// Step runs one conversation turn: it sends the history, applies the returned tool
// calls, commits whatever action groups became eligible and checks for the sentinel.
// An empty userMessage continues the conversation without adding a user turn.
func (a *Agent) Step(ctx context.Context, userMessage string) (result StepResult, err error) {
	const op = "Step"
	logger := a.logger.With(zap.String(logg.Operation, op))

	if a.state == StateDone || a.state == StateFailed {
		return StepResult{}, apperr.WrapErrorWithReason(op, apperr.CodeSessionClosed, "conversation_"+string(a.state))
	}

	ctx, step := tracing.StartSpan(ctx, a.tracer, logger, op,
		attribute.Int("messages_count", len(a.messages)),
		attribute.Bool("has_user_message", userMessage != ""))
	defer func() {
		if err != nil {
			a.state = StateFailed
		}

		step.End(err)
	}()

	if len(a.messages) == 0 {
		a.messages = append(a.messages, entity.Message{Role: entity.RoleSystem, Content: a.config.SystemPrompt})
	}

	if userMessage != "" {
		a.messages = append(a.messages, entity.Message{Role: entity.RoleUser, Content: userMessage})
	}

	step.AddEvent("requesting completion")

	resp, err := a.chat.Complete(ctx, entity.ChatRequest{
		Messages: a.messages,
		Tools:    a.accumulator.Tools(),
		N:        1,
	})
	if err != nil {
		return StepResult{}, err
	}

	reply := resp.Message
	a.messages = append(a.messages, reply)

	for _, call := range reply.ToolCalls {
		callLogger := logger.With(zap.String(logg.Tool, call.Name), zap.String(logg.ToolCallID, call.ID))

		matched, err := a.accumulator.ApplyToolCall(call.Name, call.Arguments)
		if err != nil {
			return StepResult{}, err
		}

		switch {
		case matched:
			a.acknowledge(call.ID, toolAckSuccess)
			callLogger.Debug("Tool call acknowledged")
		case a.config.AckUnknownTools:
			a.acknowledge(call.ID, toolAckUnknown)
			callLogger.Warn("Unknown tool call acknowledged")
		default:
			callLogger.Warn("Unknown tool call left without a result")
		}
	}

	step.AddEvent("committing intents", attribute.Int("tool_calls", len(reply.ToolCalls)))

	if err := a.accumulator.CommitPending(ctx, a.onStep); err != nil {
		return StepResult{}, err
	}

	if strings.Contains(reply.Content, a.config.TerminalSentinel) {
		a.state = StateDone
		logger.Info("Terminal sentinel received")

		return StepResult{Done: true, Text: reply.Content}, nil
	}

	a.state = StateAwaitingCompletion

	return StepResult{}, nil
}

func (a *Agent) acknowledge(callID, content string) {
	a.messages = append(a.messages, entity.Message{
		Role:       entity.RoleTool,
		Content:    content,
		ToolCallID: callID,
	})
}

func (a *Agent) State() LoopState {
	return a.state
}

// Messages returns a copy of the conversation so far.
func (a *Agent) Messages() []entity.Message {
	out := make([]entity.Message, len(a.messages))
	copy(out, a.messages)

	return out
}
