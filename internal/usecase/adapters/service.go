package adapters

import (
	"context"

	"trip-agent/internal/entity"
	"trip-agent/internal/ports"
)

type BrowserService interface {
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	IsReady() bool
}

type SessionService interface {
	Run(ctx context.Context, request string, reporter ports.StatusReporter) (*entity.Session, error)
}
