package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:   "dashlytics",
		Short: "Run analytics pipelines against files and databases",
	}
	root.PersistentFlags().String("config", "", "config file (default: dashlytics.yaml if present)")
	root.PersistentFlags().StringP("format", "f", "table", "output format, 'json', 'csv' or 'table'")
	root.PersistentFlags().String("source", "", "source path override for file sources")
	addCommands(root)
	root.Execute()
}
