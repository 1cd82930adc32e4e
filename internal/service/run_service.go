package service

import (
	"context"
	"errors"

	"github.com/iatidata/sector-harvester/internal/model"
)

// ErrRunStatusDisabled is returned when no run-status store is configured.
var ErrRunStatusDisabled = errors.New("run status store not configured")

// RunStatusReader reads recorded harvest summaries.
type RunStatusReader interface {
	Latest(ctx context.Context) (*model.RunSummary, error)
	Get(ctx context.Context, runID string) (*model.RunSummary, error)
}

// RunService exposes harvest summaries to the read API.
type RunService struct {
	reader RunStatusReader
}

// NewRunService creates a new RunService. A nil reader disables lookups.
func NewRunService(reader RunStatusReader) *RunService {
	return &RunService{reader: reader}
}

func (s *RunService) Latest(ctx context.Context) (*model.RunSummary, error) {
	if s.reader == nil {
		return nil, ErrRunStatusDisabled
	}
	return s.reader.Latest(ctx)
}

func (s *RunService) Get(ctx context.Context, runID string) (*model.RunSummary, error) {
	if s.reader == nil {
		return nil, ErrRunStatusDisabled
	}
	return s.reader.Get(ctx, runID)
}
