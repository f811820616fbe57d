package laughtrack

import (
	"context"
)

type Service interface {
	Analyze(ctx context.Context, audioPath string, params Params) (*Report, error)
	GetRun(id string) (*Run, error)
	ListRuns() ([]Run, error)
	DeleteRun(id string) error
	Close() error
}

type Storage interface {
	SaveRun(run *Run) (string, error)
	GetRun(id string) (*Run, error)
	ListRuns() ([]Run, error)
	DeleteRun(id string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
