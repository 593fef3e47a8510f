package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dashlytics/dashlytics/advisor"
	"github.com/dashlytics/dashlytics/engine"
	"github.com/dashlytics/dashlytics/logger"
	"github.com/dashlytics/dashlytics/output"
	"github.com/dashlytics/dashlytics/source"
	"github.com/dashlytics/dashlytics/sqlbuilder"
	"github.com/dashlytics/dashlytics/value"
)

func addCommands(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "query table",
		Short: "Run a filter/aggregate pipeline against a table",
		Args:  cobra.ExactArgs(1),
		Run:   runQuery}
	addDescriptorFlags(cmd)
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "timeseries table time-column interval",
		Short: "Bucket a table into calendar intervals and aggregate per bucket",
		Args:  cobra.ExactArgs(3),
		Run:   runTimeSeries}
	addDescriptorFlags(cmd)
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "sql statement",
		Short: "Run a read-only SQL statement against a relational source",
		Args:  cobra.ExactArgs(1),
		Run:   runSQL}
	cmd.Flags().Int64("limit", 0, "row cap injected when the statement has no LIMIT")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "build-sql table",
		Short: "Print the SQL a query descriptor would push down",
		Args:  cobra.ExactArgs(1),
		Run:   runBuildSQL}
	addDescriptorFlags(cmd)
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "optimize statement",
		Short: "Print the statement with the advisor's rewrites applied",
		Args:  cobra.ExactArgs(1),
		Run:   runOptimize}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "explain statement",
		Short: "Print the database execution plan for a statement",
		Args:  cobra.ExactArgs(1),
		Run:   runExplain}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "tables",
		Short: "List the tables of a relational source",
		Run:   runTables}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "describe table",
		Short: "Show columns, primary keys and foreign keys of a table",
		Args:  cobra.ExactArgs(1),
		Run:   runDescribe}
	root.AddCommand(cmd)
}

func addDescriptorFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("where", nil, "filter condition 'column:op[:operand[,operand]]' (repeatable)")
	cmd.Flags().StringSlice("group-by", nil, "group-by columns")
	cmd.Flags().StringArray("agg", nil, "aggregation 'column:func[:alias]' (repeatable)")
	cmd.Flags().StringArray("sort", nil, "sort key 'column[:desc]' (repeatable)")
	cmd.Flags().Int64("limit", -1, "result row cap (-1: no cap)")
	cmd.Flags().Int64("offset", -1, "result row offset (-1: none)")
	cmd.Flags().Int64("fetch-limit", 0, "source fetch row cap (0: config default)")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// setup loads config, initializes logging and opens the configured source
// through the cache. CLI runs are one shot, but going through the cache
// keeps the open path identical to embedded use.
func setup(cmd *cobra.Command) (*Config, *source.Cache, source.Source) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fatal(err)
	}
	logger.Init(cfg.Log)

	cache, err := source.NewCache(cfg.CacheSize)
	if err != nil {
		fatal(err)
	}

	pathOverride, _ := cmd.Flags().GetString("source")
	src, err := cache.Get(cfg.handle(pathOverride, uuid.New()))
	if err != nil {
		fatal(err)
	}
	return cfg, cache, src
}

func relational(src source.Source) source.Relational {
	rel, ok := src.(source.Relational)
	if !ok {
		fatal(fmt.Errorf("%w: %s source cannot run SQL", source.ErrUnsupportedSourceType, src.Kind()))
	}
	return rel
}

func printResult(cmd *cobra.Command, res *engine.Result) {
	format, _ := cmd.Flags().GetString("format")
	if err := output.New(format, os.Stdout).Format(res); err != nil {
		fatal(err)
	}
}

func runQuery(cmd *cobra.Command, args []string) {
	cfg, cache, src := setup(cmd)
	defer cache.Close()

	q := descriptorFromFlags(cmd, args[0], cfg)
	res, err := engine.New().Run(context.Background(), src, q)
	if err != nil {
		fatal(err)
	}
	printResult(cmd, res)
}

func runTimeSeries(cmd *cobra.Command, args []string) {
	cfg, cache, src := setup(cmd)
	defer cache.Close()

	q := descriptorFromFlags(cmd, args[0], cfg)
	res, err := engine.New().RunTimeSeries(context.Background(), src, q, args[1], engine.Interval(args[2]))
	if err != nil {
		fatal(err)
	}
	printResult(cmd, res)
}

func runSQL(cmd *cobra.Command, args []string) {
	_, cache, src := setup(cmd)
	defer cache.Close()

	limit, _ := cmd.Flags().GetInt64("limit")
	rs, err := relational(src).RunSQL(context.Background(), args[0], limit)
	if err != nil {
		fatal(err)
	}
	printResult(cmd, &engine.Result{Columns: rs.Columns, Rows: rs.Rows, RowCount: len(rs.Rows)})
}

func runBuildSQL(cmd *cobra.Command, args []string) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fatal(err)
	}
	logger.Init(cfg.Log)

	q := descriptorFromFlags(cmd, args[0], cfg)
	fmt.Println(sqlbuilder.FromDescriptor(args[0], q).Build())
}

func runOptimize(cmd *cobra.Command, args []string) {
	fmt.Println(advisor.Optimize(args[0]))
}

func runExplain(cmd *cobra.Command, args []string) {
	_, cache, src := setup(cmd)
	defer cache.Close()

	lines, err := advisor.Explain(context.Background(), relational(src), args[0])
	if err != nil {
		fatal(err)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
}

func runTables(cmd *cobra.Command, args []string) {
	_, cache, src := setup(cmd)
	defer cache.Close()

	names, err := relational(src).ListTables(context.Background())
	if err != nil {
		fatal(err)
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func runDescribe(cmd *cobra.Command, args []string) {
	_, cache, src := setup(cmd)
	defer cache.Close()

	schema, err := relational(src).DescribeTable(context.Background(), args[0])
	if err != nil {
		fatal(err)
	}

	res := &engine.Result{Columns: []string{"column", "type", "nullable", "default"}}
	for _, col := range schema.Columns {
		res.Rows = append(res.Rows, []interface{}{col.Name, col.Type, col.Nullable, col.Default})
	}
	res.RowCount = len(res.Rows)
	printResult(cmd, res)

	if len(schema.PrimaryKeys) > 0 {
		fmt.Println("primary key:", strings.Join(schema.PrimaryKeys, ", "))
	}
	for _, fk := range schema.ForeignKeys {
		fmt.Printf("foreign key: %s -> %s(%s)\n",
			strings.Join(fk.ConstrainedColumns, ", "), fk.ReferredTable, strings.Join(fk.ReferredColumns, ", "))
	}
}

// descriptorFromFlags assembles the pipeline descriptor from the shared
// descriptor flags.
func descriptorFromFlags(cmd *cobra.Command, table string, cfg *Config) engine.QueryDescriptor {
	q := engine.QueryDescriptor{Table: table, FetchLimit: cfg.FetchLimit}

	if v, _ := cmd.Flags().GetInt64("fetch-limit"); v > 0 {
		q.FetchLimit = v
	}
	if v, _ := cmd.Flags().GetInt64("limit"); v >= 0 {
		q.Limit = &v
	}
	if v, _ := cmd.Flags().GetInt64("offset"); v >= 0 {
		q.Offset = &v
	}

	q.GroupBy, _ = cmd.Flags().GetStringSlice("group-by")

	wheres, _ := cmd.Flags().GetStringArray("where")
	for _, w := range wheres {
		q.Predicates = append(q.Predicates, parsePredicate(w))
	}

	aggs, _ := cmd.Flags().GetStringArray("agg")
	for _, a := range aggs {
		parts := strings.SplitN(a, ":", 3)
		if len(parts) < 2 {
			fatal(fmt.Errorf("invalid aggregation %q, want 'column:func[:alias]'", a))
		}
		agg := engine.Aggregation{Func: engine.AggFunc(parts[1])}
		if len(parts) == 3 {
			agg.Alias = parts[2]
		}
		if q.Aggregations == nil {
			q.Aggregations = make(map[string][]engine.Aggregation)
		}
		q.Aggregations[parts[0]] = append(q.Aggregations[parts[0]], agg)
	}

	sorts, _ := cmd.Flags().GetStringArray("sort")
	for _, s := range sorts {
		column, dir, _ := strings.Cut(s, ":")
		q.SortBy = append(q.SortBy, engine.SortKey{Column: column, Ascending: dir != "desc"})
	}

	return q
}

// parsePredicate reads 'column:op[:operand[,operand]]'. List operators
// split the operand part on commas.
func parsePredicate(s string) engine.Predicate {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		fatal(fmt.Errorf("invalid condition %q, want 'column:op[:operand]'", s))
	}
	p := engine.Predicate{Column: parts[0], Operator: engine.Operator(parts[1])}
	if len(parts) < 3 {
		return p
	}
	switch p.Operator {
	case engine.OpIn, engine.OpNotIn, engine.OpBetween:
		for _, part := range strings.Split(parts[2], ",") {
			p.Operands = append(p.Operands, parseLiteral(part))
		}
	default:
		p.Operand = parseLiteral(parts[2])
	}
	return p
}

// parseLiteral coerces a flag operand to the narrowest kind that fits,
// mirroring how file sources sniff CSV cells.
func parseLiteral(s string) value.Value {
	if s == "" || s == "null" {
		return value.Null()
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f)
	}
	switch s {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	}
	return value.Text(s)
}
