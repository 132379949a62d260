package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/graphfed/gateway/server"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Federation Gateway",
	Run: func(cmd *cobra.Command, args []string) {
		println("Federation Gateway v0.0.0-rc")
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new Federation Gateway project",
	Run: func(cmd *cobra.Command, args []string) {
		server.Init()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Federation Gateway server",
	Run: func(cmd *cobra.Command, args []string) {
		server.Run()
	},
}

var subgraphFlag []string

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose subgraph schemas offline and check satisfiability",
	Long: "Compose reads one or more subgraph SDL files, runs schema composition " +
		"and satisfiability validation, and prints any hints or errors without " +
		"starting the gateway server.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(subgraphFlag) == 0 {
			fmt.Fprintln(os.Stderr, "at least one --subgraph name=path/to/schema.graphql is required")
			os.Exit(1)
		}

		sources := make([]server.SubGraphSource, 0, len(subgraphFlag))
		for _, entry := range subgraphFlag {
			name, path, ok := strings.Cut(entry, "=")
			if !ok {
				fmt.Fprintf(os.Stderr, "invalid --subgraph %q, expected name=path\n", entry)
				os.Exit(1)
			}
			sources = append(sources, server.SubGraphSource{Name: name, Path: path})
		}

		if err := server.Compose(sources); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func main() {
	rootCmd := cobra.Command{}

	composeCmd.Flags().StringArrayVar(&subgraphFlag, "subgraph", nil, "subgraph in name=path/to/schema.graphql form, repeatable")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(composeCmd)

	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
