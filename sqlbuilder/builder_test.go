package sqlbuilder

import (
	"testing"
	"time"

	"github.com/dashlytics/dashlytics/engine"
	"github.com/dashlytics/dashlytics/value"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder
		want  string
	}{
		{
			name:  "bare table selects star",
			build: func() *Builder { return New("orders") },
			want:  `SELECT * FROM "orders"`,
		},
		{
			name: "full clause order",
			build: func() *Builder {
				return New("orders").
					Select("region").
					Where(engine.Predicate{Column: "status", Operator: engine.OpEq, Operand: value.Text("paid")}).
					GroupBy("region").
					OrderBy("region", true).
					Limit(10).
					Offset(5)
			},
			want: `SELECT "region" FROM "orders" WHERE "status" = 'paid' GROUP BY "region" ORDER BY "region" ASC LIMIT 10 OFFSET 5`,
		},
		{
			name: "aggregate with default alias",
			build: func() *Builder {
				return New("orders").GroupBy("region").Select("region").Aggregate("amount", engine.AggSum, "")
			},
			want: `SELECT "region", SUM("amount") AS "sum_amount" FROM "orders" GROUP BY "region"`,
		},
		{
			name: "aggregate with explicit alias",
			build: func() *Builder {
				return New("orders").Aggregate("amount", engine.AggAvg, "mean_amount")
			},
			want: `SELECT AVG("amount") AS "mean_amount" FROM "orders"`,
		},
		{
			name: "text operand quotes doubled",
			build: func() *Builder {
				return New("customers").
					Where(engine.Predicate{Column: "name", Operator: engine.OpEq, Operand: value.Text("O'Brien")})
			},
			want: `SELECT * FROM "customers" WHERE "name" = 'O''Brien'`,
		},
		{
			name: "multiple conditions AND",
			build: func() *Builder {
				return New("orders").
					Where(engine.Predicate{Column: "amount", Operator: engine.OpGt, Operand: value.Int(100)}).
					Where(engine.Predicate{Column: "region", Operator: engine.OpNe, Operand: value.Text("test")})
			},
			want: `SELECT * FROM "orders" WHERE "amount" > 100 AND "region" != 'test'`,
		},
		{
			name: "in list",
			build: func() *Builder {
				return New("orders").
					Where(engine.Predicate{Column: "region", Operator: engine.OpIn,
						Operands: []value.Value{value.Text("west"), value.Text("east")}})
			},
			want: `SELECT * FROM "orders" WHERE "region" IN ('west', 'east')`,
		},
		{
			name: "between bounds",
			build: func() *Builder {
				return New("orders").
					Where(engine.Predicate{Column: "amount", Operator: engine.OpBetween,
						Operands: []value.Value{value.Int(10), value.Int(20)}})
			},
			want: `SELECT * FROM "orders" WHERE "amount" BETWEEN 10 AND 20`,
		},
		{
			name: "null checks",
			build: func() *Builder {
				return New("orders").
					Where(engine.Predicate{Column: "deleted_at", Operator: engine.OpIsNull}).
					Where(engine.Predicate{Column: "region", Operator: engine.OpIsNotNull})
			},
			want: `SELECT * FROM "orders" WHERE "deleted_at" IS NULL AND "region" IS NOT NULL`,
		},
		{
			name: "malformed between dropped",
			build: func() *Builder {
				return New("orders").
					Where(engine.Predicate{Column: "amount", Operator: engine.OpBetween,
						Operands: []value.Value{value.Int(10)}})
			},
			want: `SELECT * FROM "orders"`,
		},
		{
			name: "boolean and null literals",
			build: func() *Builder {
				return New("orders").
					Where(engine.Predicate{Column: "active", Operator: engine.OpEq, Operand: value.Bool(true)}).
					Where(engine.Predicate{Column: "note", Operator: engine.OpIn,
						Operands: []value.Value{value.Text("a"), value.Null()}})
			},
			want: `SELECT * FROM "orders" WHERE "active" = TRUE AND "note" IN ('a', NULL)`,
		},
		{
			name: "null scalar operand dropped",
			build: func() *Builder {
				return New("orders").
					Where(engine.Predicate{Column: "note", Operator: engine.OpNe, Operand: value.Null()})
			},
			want: `SELECT * FROM "orders"`,
		},
		{
			name: "timestamp literal quoted",
			build: func() *Builder {
				ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
				return New("orders").
					Where(engine.Predicate{Column: "created_at", Operator: engine.OpGte, Operand: value.Time(ts)})
			},
			want: `SELECT * FROM "orders" WHERE "created_at" >= '2024-03-15T10:00:00Z'`,
		},
		{
			name: "join clause",
			build: func() *Builder {
				return New("orders").
					Select("region").
					Join("customers", `"orders"."customer_id" = "customers"."id"`, "LEFT")
			},
			want: `SELECT "region" FROM "orders" LEFT JOIN "customers" ON "orders"."customer_id" = "customers"."id"`,
		},
		{
			name: "having clause",
			build: func() *Builder {
				return New("orders").
					GroupBy("region").
					Aggregate("amount", engine.AggSum, "").
					Having(engine.Predicate{Column: "sum_amount", Operator: engine.OpGt, Operand: value.Int(100)})
			},
			want: `SELECT SUM("amount") AS "sum_amount" FROM "orders" GROUP BY "region" HAVING "sum_amount" > 100`,
		},
		{
			name: "raw condition verbatim",
			build: func() *Builder {
				return New("orders").WhereRaw(`"amount" % 2 = 0`)
			},
			want: `SELECT * FROM "orders" WHERE "amount" % 2 = 0`,
		},
		{
			name: "order by descending",
			build: func() *Builder {
				return New("orders").OrderBy("amount", false)
			},
			want: `SELECT * FROM "orders" ORDER BY "amount" DESC`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.build().Build(); got != tt.want {
				t.Errorf("Build() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllowColumns(t *testing.T) {
	got := New("orders").
		AllowColumns("region", "amount").
		Select("region", "secret").
		Where(engine.Predicate{Column: "amount", Operator: engine.OpGt, Operand: value.Int(5)}).
		Where(engine.Predicate{Column: "password", Operator: engine.OpEq, Operand: value.Text("x")}).
		GroupBy("region", "secret").
		OrderBy("password", true).
		Aggregate("secret", engine.AggSum, "").
		Build()

	want := `SELECT "region" FROM "orders" WHERE "amount" > 5 GROUP BY "region"`
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestFromDescriptor(t *testing.T) {
	limit := int64(50)
	offset := int64(10)
	q := engine.QueryDescriptor{
		Table: "orders",
		Predicates: []engine.Predicate{
			{Column: "status", Operator: engine.OpEq, Operand: value.Text("paid")},
		},
		GroupBy: []string{"region"},
		Aggregations: map[string][]engine.Aggregation{
			"amount": {{Func: engine.AggSum, Alias: "amount_sum"}},
		},
		SortBy: []engine.SortKey{{Column: "amount_sum", Ascending: false}},
		Limit:  &limit,
		Offset: &offset,
	}

	got := FromDescriptor("orders", q).Build()
	want := `SELECT "region", SUM("amount") AS "amount_sum" FROM "orders" WHERE "status" = 'paid' GROUP BY "region" ORDER BY "amount_sum" DESC LIMIT 50 OFFSET 10`
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}
