package engine

import (
	"context"
	"log/slog"

	"github.com/dashlytics/dashlytics/logger"
	"github.com/dashlytics/dashlytics/value"
)

// Stage identifies a pipeline phase. A run moves strictly forward through
// Fetching, Filtering, Aggregating or Bucketing, Sorting, Paginating and
// Done; Failed is terminal and reachable from any stage. No stage re-enters
// a prior one and no stage retries; retry policy belongs to the source
// collaborator.
type Stage string

const (
	StageFetching    Stage = "fetching"
	StageFiltering   Stage = "filtering"
	StageAggregating Stage = "aggregating"
	StageBucketing   Stage = "bucketing"
	StageSorting     Stage = "sorting"
	StagePaginating  Stage = "paginating"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// TableFetcher is the slice of the source collaborator the pipeline
// consumes: load a table snapshot. The collaborator owns pooling,
// credentials and retries. A zero limit means no row cap.
type TableFetcher interface {
	FetchTable(ctx context.Context, table string, limit int64) (*value.Table, error)
}

// QueryDescriptor declaratively describes one pipeline run.
type QueryDescriptor struct {
	// Table names the relational table to snapshot; file-backed sources
	// ignore it.
	Table        string
	Predicates   []Predicate
	GroupBy      []string
	Aggregations map[string][]Aggregation
	SortBy       []SortKey
	Limit        *int64
	Offset       *int64
	// FetchLimit caps rows requested from the source (0 = no cap).
	FetchLimit int64
}

// Result is the response payload of a pipeline run.
type Result struct {
	Columns  []string
	Rows     [][]interface{}
	RowCount int
}

// Engine composes the pipeline stages. It holds no mutable state and is
// safe for concurrent use; each run owns its tables.
type Engine struct {
	log *slog.Logger
}

// New returns a ready engine.
func New() *Engine {
	return &Engine{log: logger.With("engine")}
}

// run tracks the forward-only stage progression of one pipeline execution.
type run struct {
	stage Stage
	log   *slog.Logger
}

func (r *run) advance(s Stage) {
	r.log.Debug("pipeline stage", "from", r.stage, "to", s)
	r.stage = s
}

// fail marks the run failed and tags the error with the stage it died in.
// The underlying error stays reachable through Unwrap, message intact.
func (r *run) fail(err error) error {
	stage := r.stage
	r.stage = StageFailed
	r.log.Debug("pipeline failed", "stage", stage, "error", err)
	return &StageError{Stage: stage, Err: err}
}

// Run executes the descriptor against a source: fetch, filter, aggregate
// when grouping or aggregations are requested, sort, paginate.
func (e *Engine) Run(ctx context.Context, src TableFetcher, q QueryDescriptor) (*Result, error) {
	st := &run{stage: StageFetching, log: e.log}

	tbl, err := src.FetchTable(ctx, q.Table, q.FetchLimit)
	if err != nil {
		return nil, st.fail(err)
	}

	st.advance(StageFiltering)
	tbl = Filter(tbl, q.Predicates)

	if len(q.GroupBy) > 0 || len(q.Aggregations) > 0 {
		st.advance(StageAggregating)
		tbl, err = Aggregate(tbl, q.GroupBy, q.Aggregations)
		if err != nil {
			return nil, st.fail(err)
		}
	}

	st.advance(StageSorting)
	tbl = Sort(tbl, q.SortBy)

	st.advance(StagePaginating)
	tbl = Paginate(tbl, q.Offset, q.Limit)

	st.advance(StageDone)
	return resultFrom(tbl), nil
}

// RunTimeSeries executes the descriptor with calendar time bucketing in
// place of plain aggregation: fetch, filter, bucket, sort, paginate.
func (e *Engine) RunTimeSeries(ctx context.Context, src TableFetcher, q QueryDescriptor, timeColumn string, interval Interval) (*Result, error) {
	st := &run{stage: StageFetching, log: e.log}

	tbl, err := src.FetchTable(ctx, q.Table, q.FetchLimit)
	if err != nil {
		return nil, st.fail(err)
	}

	st.advance(StageFiltering)
	tbl = Filter(tbl, q.Predicates)

	st.advance(StageBucketing)
	tbl, err = e.BucketTime(tbl, timeColumn, interval, q.GroupBy, q.Aggregations)
	if err != nil {
		return nil, st.fail(err)
	}

	st.advance(StageSorting)
	tbl = Sort(tbl, q.SortBy)

	st.advance(StagePaginating)
	tbl = Paginate(tbl, q.Offset, q.Limit)

	st.advance(StageDone)
	return resultFrom(tbl), nil
}

func resultFrom(t *value.Table) *Result {
	columns, rows := t.Records()
	return &Result{Columns: columns, Rows: rows, RowCount: len(rows)}
}
