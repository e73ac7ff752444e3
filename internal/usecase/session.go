package usecase

import (
	"context"
	"errors"
	"time"

	"trip-agent/internal/booking"
	"trip-agent/internal/config"
	"trip-agent/internal/entity"
	"trip-agent/internal/ports"
	"trip-agent/pkg/apperr"
	"trip-agent/pkg/logg"
	"trip-agent/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionServiceName = "SessionService"
	sessionTracer      = "usecase.session"

	thinkingAction = "Thinking"
)

// SessionService logs in, then drives a fresh conversation loop per request until
// the model signals completion or a step fails.
type SessionService struct {
	config  *config.Config
	logger  *zap.Logger
	tracer  trace.Tracer
	browser ports.BrowserManager
	chat    ports.ChatClient
}

type SessionServiceParams struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Browser ports.BrowserManager
	Chat    ports.ChatClient
}

func NewSessionService(params SessionServiceParams) *SessionService {
	return &SessionService{
		config:  params.Config,
		logger:  params.Logger.With(zap.String(logg.Layer, sessionServiceName)),
		browser: params.Browser,
		chat:    params.Chat,
		tracer:  otel.Tracer(sessionTracer),
	}
}

// Run books the trip described by request. Every call starts with empty intents and
// commit flags. The returned session is non-nil whenever the request was accepted,
// including on failure.
func (s *SessionService) Run(ctx context.Context, request string, reporter ports.StatusReporter) (sess *entity.Session, err error) {
	const op = "Run"
	logger := s.logger.With(zap.String(logg.Operation, op))

	if request == "" {
		return nil, apperr.InvalidReqError(op, "request", errors.New("trip request cannot be empty"))
	}

	sess = &entity.Session{
		ID:        uuid.New(),
		Request:   request,
		Status:    entity.SessionStatusInProgress,
		CreatedAt: time.Now(),
		Steps:     make([]entity.Step, 0),
	}

	logger = logger.With(zap.String(logg.SessionID, sess.ID.String()))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("session_id", sess.ID.String()))
	defer func() {
		s.finish(sess, reporter, logger, err)
		step.SetAttributes(
			attribute.Int("turns", sess.Turns),
			attribute.Int("steps", len(sess.Steps)),
			attribute.String("status", string(sess.Status)))
		step.End(err)
	}()

	if !s.browser.IsReady() {
		return sess, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if !s.config.SiteConfig.SkipLogin {
		notify(reporter, entity.Status{State: entity.StatusLogin})
		step.AddEvent("waiting for login")

		if err := s.login(ctx); err != nil {
			return sess, err
		}
	}

	notify(reporter, entity.Status{State: entity.StatusWorking, Action: thinkingAction})

	actions := booking.NewPageActions(s.browser, s.config.TimingConfig, logger)
	accumulator := booking.NewAccumulator(booking.NewRegistry(), actions, logger)

	agent := NewAgent(AgentParams{
		Config:      s.config.AgentConfig,
		Logger:      logger,
		Chat:        s.chat,
		Accumulator: accumulator,
		OnStep: func(name string) {
			sess.Steps = append(sess.Steps, entity.Step{ID: uuid.New(), Name: name, Timestamp: time.Now()})
			notify(reporter, entity.Status{State: entity.StatusWorking, Action: name})
		},
	})

	defer func() {
		flags := accumulator.Flags()
		logger.Info("Conversation summary",
			zap.Int("messages", len(agent.Messages())),
			zap.Any("pending", accumulator.Pending()),
			zap.Bool("search_committed", flags.SearchCommitted),
			zap.Bool("filters_committed", flags.FiltersCommitted),
			zap.Bool("booking_committed", flags.BookingCommitted))
	}()

	result, err := s.drive(ctx, sess, agent, logger)
	if err != nil {
		return sess, err
	}

	sess.Result = result.Text

	return sess, nil
}

// drive calls Step with the request once and then with no user message, pausing
// StepInterval between calls, until the sentinel arrives or MaxSteps is reached.
func (s *SessionService) drive(ctx context.Context, sess *entity.Session, agent *Agent, logger *zap.Logger) (StepResult, error) {
	const op = "drive"
	agentConfig := s.config.AgentConfig

	prompt := sess.Request

	for {
		if agentConfig.MaxSteps > 0 && sess.Turns >= agentConfig.MaxSteps {
			return StepResult{}, apperr.Wrap(op, apperr.CodeMaxSteps, errors.New("step budget exhausted"), map[string]any{
				apperr.MetaReason: "max_steps_reached",
				apperr.MetaStage:  apperr.StageAI,
			})
		}

		sess.Turns++
		logger.Debug("Running step", zap.Int(logg.Step, sess.Turns))

		result, err := agent.Step(ctx, prompt)
		if err != nil {
			return StepResult{}, err
		}

		if result.Done {
			return result, nil
		}

		prompt = ""

		select {
		case <-ctx.Done():
			return StepResult{}, apperr.WrapWithReason(op, apperr.CodeCancelledByUser, ctx.Err(), "context_cancelled")
		case <-time.After(agentConfig.StepInterval):
		}
	}
}

// login opens the login page and waits until the user lands on the home page.
// Redirects during a manual login abort navigations, so those errors are ignored.
func (s *SessionService) login(ctx context.Context) (err error) {
	const op = "login"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	site := s.config.SiteConfig

	if err := s.browser.Navigate(ctx, site.LoginURL, entity.WaitUntilNetworkIdle); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "login_page_unreachable",
			apperr.MetaStage:  apperr.StageLogin,
			apperr.MetaURL:    site.LoginURL,
		})
	}

	logger.Info("Waiting for the user to log in", zap.String(logg.URL, site.LoginURL))

	err = s.browser.WaitForURL(ctx, func(url string) bool {
		return url == site.HomeURL
	}, s.config.TimingConfig.LoginTimeout, true)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "login_not_completed",
			apperr.MetaStage:  apperr.StageLogin,
			apperr.MetaURL:    site.HomeURL,
		})
	}

	logger.Info("Logged in")

	return nil
}

func (s *SessionService) finish(sess *entity.Session, reporter ports.StatusReporter, logger *zap.Logger, err error) {
	if sess == nil {
		return
	}

	completedAt := time.Now()
	sess.CompletedAt = &completedAt

	if err != nil {
		sess.Status = entity.SessionStatusFailed
		sess.Error = err.Error()
		logger.Error("Session failed", zap.Error(err), zap.Int("turns", sess.Turns))
		notify(reporter, entity.Status{State: entity.StatusFailed})

		return
	}

	sess.Status = entity.SessionStatusCompleted
	logger.Info("Session completed", zap.Int("turns", sess.Turns), zap.Int("steps", len(sess.Steps)))
	notify(reporter, entity.Status{State: entity.StatusDone})
}

func notify(reporter ports.StatusReporter, status entity.Status) {
	if reporter != nil {
		reporter.ReportStatus(status)
	}
}
