package entity

import "context"

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

type RunUpdater func(run Run) (Run, error)

//counterfeiter:generate . RunStore
type RunStore interface {
	GetRun(ctx context.Context, runID string) (Run, error)
	SetRun(ctx context.Context, run Run) error
	UpdateRun(ctx context.Context, runID string, updater RunUpdater) error
}
