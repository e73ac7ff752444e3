package ai

import (
	"context"
	"errors"

	"trip-agent/internal/config"
	"trip-agent/internal/entity"
	"trip-agent/pkg/apperr"
	"trip-agent/pkg/logg"
	"trip-agent/pkg/tracing"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	aiClientName = "AIClient"
	aiTracer     = "ai.client"
)

type Client struct {
	config *config.Config
	logger *zap.Logger
	tracer trace.Tracer
	openai *openai.Client
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewClient(params Params) *Client {
	clientConfig := openai.DefaultConfig(params.Config.AIConfig.APIKey)
	if params.Config.AIConfig.BaseURL != "" {
		clientConfig.BaseURL = params.Config.AIConfig.BaseURL
	}

	return &Client{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, aiClientName)),
		tracer: otel.Tracer(aiTracer),
		openai: openai.NewClientWithConfig(clientConfig),
	}
}

// Complete sends the conversation and tool descriptors and returns the first choice.
func (c *Client) Complete(ctx context.Context, req entity.ChatRequest) (resp *entity.ChatResponse, err error) {
	const op = "Complete"
	logger := c.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op,
		attribute.Int("messages_count", len(req.Messages)),
		attribute.Int("tools_count", len(req.Tools)))
	defer func() {
		step.End(err)
	}()

	model := req.Model
	if model == "" {
		model = c.config.AIConfig.Model
	}

	n := req.N
	if n == 0 {
		n = 1
	}

	logger.Debug("Sending chat completion", zap.Int("messages_count", len(req.Messages)), zap.String("model", model))

	step.AddEvent("sending request")

	completion, err := c.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(req.Messages),
		Tools:    toOpenAITools(req.Tools),
		N:        n,
	})
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeAIError, err, map[string]any{
			apperr.MetaReason: "completion_failed",
			apperr.MetaStage:  apperr.StageAI,
		})
	}

	if len(completion.Choices) == 0 {
		return nil, apperr.Wrap(op, apperr.CodeAIError, errors.New("no completion choices"), map[string]any{
			apperr.MetaReason: "empty_response",
			apperr.MetaStage:  apperr.StageAI,
		})
	}

	step.AddEvent("response received", attribute.Int("prompt_tokens", completion.Usage.PromptTokens))

	message := fromOpenAIMessage(completion.Choices[0].Message)

	logger.Debug("Chat completion received",
		zap.Int("tool_calls", len(message.ToolCalls)),
		zap.Int("total_tokens", completion.Usage.TotalTokens))

	return &entity.ChatResponse{Message: message}, nil
}

func toOpenAIMessages(messages []entity.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))

	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}

		for _, call := range msg.ToolCalls {
			out[i].ToolCalls = append(out[i].ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
	}

	return out
}

func toOpenAITools(tools []entity.ToolDescriptor) []openai.Tool {
	out := make([]openai.Tool, len(tools))

	for i, tool := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		}
	}

	return out
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) entity.Message {
	out := entity.Message{
		Role:    entity.Role(msg.Role),
		Content: msg.Content,
	}

	if out.Role == "" {
		out.Role = entity.RoleAssistant
	}

	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, entity.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	return out
}
