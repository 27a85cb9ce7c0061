// Package fanout composes several implementations of an outgoing port
// into one. Every branch is attempted on every call even when an
// earlier branch fails, so a broken database does not starve the queue
// and vice versa. The first error is returned for the caller to record;
// retries are safe because the postgres branch upserts and the queue
// branch is at-least-once anyway.
package fanout

import (
	"context"
	"fmt"

	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"

	"github.com/google/uuid"
)

// MultiSink fans one Emit out to every configured property sink.
type MultiSink struct {
	sinks []port.PropertySinkPort
}

// NewMultiSink builds a fan-out sink. At least one branch is required.
func NewMultiSink(sinks ...port.PropertySinkPort) (*MultiSink, error) {
	if len(sinks) == 0 {
		return nil, fmt.Errorf("fanout: at least one property sink is required")
	}
	return &MultiSink{sinks: sinks}, nil
}

func (m *MultiSink) Emit(ctx context.Context, property domain.Property, taskID uuid.UUID) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Emit(ctx, property, taskID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MultiReporter fans one ReportRun out to every configured reporter.
type MultiReporter struct {
	reporters []port.RunReporterPort
}

// NewMultiReporter builds a fan-out reporter. At least one branch is required.
func NewMultiReporter(reporters ...port.RunReporterPort) (*MultiReporter, error) {
	if len(reporters) == 0 {
		return nil, fmt.Errorf("fanout: at least one run reporter is required")
	}
	return &MultiReporter{reporters: reporters}, nil
}

func (m *MultiReporter) ReportRun(ctx context.Context, taskID uuid.UUID, summary *domain.RunSummary) error {
	var firstErr error
	for _, reporter := range m.reporters {
		if err := reporter.ReportRun(ctx, taskID, summary); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
