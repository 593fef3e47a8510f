package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashlytics/dashlytics/value"
)

// switchSource routes each fetch by table name so one batch can mix
// successes and failures.
type switchSource struct {
	tables map[string]*value.Table
}

func (s *switchSource) FetchTable(ctx context.Context, table string, limit int64) (*value.Table, error) {
	t, ok := s.tables[table]
	if !ok {
		return nil, errors.New("relation does not exist")
	}
	return t, nil
}

func TestRunMany(t *testing.T) {
	e := New()
	small, err := value.NewTable(value.Column{Name: "n", Values: []value.Value{value.Int(1), value.Int(2)}})
	require.NoError(t, err)
	big, err := value.NewTable(value.Column{Name: "n", Values: []value.Value{
		value.Int(1), value.Int(2), value.Int(3), value.Int(4), value.Int(5),
	}})
	require.NoError(t, err)

	src := &switchSource{tables: map[string]*value.Table{"small": small, "big": big}}

	queries := []QueryDescriptor{
		{Table: "big"},
		{Table: "missing"},
		{Table: "small"},
		{Table: "big", Aggregations: map[string][]Aggregation{"n": {{Func: AggSum}}}},
	}

	items := e.RunMany(context.Background(), src, queries, 2)
	require.Len(t, items, 4)

	// Results stay in descriptor order regardless of completion order.
	require.NoError(t, items[0].Err)
	assert.Equal(t, 5, items[0].Result.RowCount)

	// One failing descriptor does not poison the rest.
	require.Error(t, items[1].Err)
	assert.Nil(t, items[1].Result)
	var stageErr *StageError
	require.ErrorAs(t, items[1].Err, &stageErr)
	assert.Equal(t, StageFetching, stageErr.Stage)

	require.NoError(t, items[2].Err)
	assert.Equal(t, 2, items[2].Result.RowCount)

	require.NoError(t, items[3].Err)
	assert.Equal(t, 1, items[3].Result.RowCount)
	assert.Equal(t, 15.0, items[3].Result.Rows[0][0])
}

func TestRunManyEmpty(t *testing.T) {
	e := New()
	items := e.RunMany(context.Background(), &switchSource{}, nil, 4)
	assert.Empty(t, items)
}

func TestRunManyWorkerClamp(t *testing.T) {
	// More workers than queries, and non-positive workers, both behave.
	e := New()
	tbl, err := value.NewTable(value.Column{Name: "n", Values: []value.Value{value.Int(1)}})
	require.NoError(t, err)
	src := &switchSource{tables: map[string]*value.Table{"t": tbl}}
	queries := []QueryDescriptor{{Table: "t"}, {Table: "t"}}

	for _, workers := range []int{0, -1, 100} {
		items := e.RunMany(context.Background(), src, queries, workers)
		require.Len(t, items, 2)
		for _, item := range items {
			require.NoError(t, item.Err)
			assert.Equal(t, 1, item.Result.RowCount)
		}
	}
}
