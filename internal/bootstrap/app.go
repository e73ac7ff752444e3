package bootstrap

import (
	"time"

	"trip-agent/internal/ai"
	"trip-agent/internal/browser"
	"trip-agent/internal/config"
	"trip-agent/internal/console"
	"trip-agent/internal/ports"
	"trip-agent/internal/usecase"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewApp wires the application. A non-empty prompt runs a single booking and exits.
func NewApp(options console.Options) *fx.App {
	return fx.New(
		fx.Supply(options),

		fx.Provide(
			config.GetConfig,
			newLogger,
			newTraceProvider,

			fx.Annotate(browser.NewManager, fx.As(new(ports.BrowserManager))),
			fx.Annotate(ai.NewClient, fx.As(new(ports.ChatClient))),

			usecase.NewUsecase,

			console.NewInterface,
		),

		fx.Invoke(
			runConsole,
		),

		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),

		fx.StartTimeout(2*time.Minute),
	)
}
