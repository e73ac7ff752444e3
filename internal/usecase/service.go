package usecase

import (
	"trip-agent/internal/config"
	"trip-agent/internal/ports"
	"trip-agent/internal/usecase/adapters"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	Session adapters.SessionService
	Browser adapters.BrowserService
}

type Params struct {
	fx.In

	Logger  *zap.Logger
	Config  *config.Config
	Browser ports.BrowserManager
	Chat    ports.ChatClient
}

func NewUsecase(params Params) *Service {
	factory := newServiceFactory(params)

	return &Service{
		Session: factory.CreateSessionService(),
		Browser: factory.CreateBrowserService(),
	}
}
