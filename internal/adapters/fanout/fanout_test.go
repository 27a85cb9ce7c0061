package fanout

import (
	"context"
	"errors"
	"testing"
	"time"

	"estate-parser-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	emitted []string
	err     error
}

func (s *recordingSink) Emit(_ context.Context, property domain.Property, _ uuid.UUID) error {
	s.emitted = append(s.emitted, property.Identity())
	return s.err
}

type recordingReporter struct {
	runs []uuid.UUID
	err  error
}

func (r *recordingReporter) ReportRun(_ context.Context, _ uuid.UUID, summary *domain.RunSummary) error {
	r.runs = append(r.runs, summary.RunID)
	return r.err
}

func TestNewMultiSinkRequiresAtLeastOneBranch(t *testing.T) {
	_, err := NewMultiSink()
	require.Error(t, err)
}

func TestMultiSinkReachesEveryBranch(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	sink, err := NewMultiSink(first, second)
	require.NoError(t, err)

	property := domain.Property{ListingID: "42", Source: domain.SourceAPI}
	require.NoError(t, sink.Emit(context.Background(), property, uuid.New()))
	require.Equal(t, []string{"42"}, first.emitted)
	require.Equal(t, []string{"42"}, second.emitted)
}

func TestMultiSinkFailureDoesNotStarveLaterBranches(t *testing.T) {
	broken := &recordingSink{err: errors.New("connection refused")}
	healthy := &recordingSink{}
	sink, err := NewMultiSink(broken, healthy)
	require.NoError(t, err)

	property := domain.Property{ListingID: "42", Source: domain.SourceAPI}
	err = sink.Emit(context.Background(), property, uuid.New())
	require.ErrorContains(t, err, "connection refused")
	require.Len(t, healthy.emitted, 1)
}

func TestMultiSinkReturnsFirstError(t *testing.T) {
	first := &recordingSink{err: errors.New("first failure")}
	second := &recordingSink{err: errors.New("second failure")}
	sink, err := NewMultiSink(first, second)
	require.NoError(t, err)

	err = sink.Emit(context.Background(), domain.Property{ListingID: "42"}, uuid.New())
	require.ErrorContains(t, err, "first failure")
}

func TestMultiReporterReachesEveryBranch(t *testing.T) {
	queue := &recordingReporter{}
	store := &recordingReporter{err: errors.New("insert failed")}
	reporter, err := NewMultiReporter(queue, store)
	require.NoError(t, err)

	summary := &domain.RunSummary{
		RunID:      uuid.New(),
		TaskName:   "nightly",
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
	}
	err = reporter.ReportRun(context.Background(), uuid.New(), summary)
	require.ErrorContains(t, err, "insert failed")
	require.Equal(t, []uuid.UUID{summary.RunID}, queue.runs)
	require.Equal(t, []uuid.UUID{summary.RunID}, store.runs)
}

func TestNewMultiReporterRequiresAtLeastOneBranch(t *testing.T) {
	_, err := NewMultiReporter()
	require.Error(t, err)
}
