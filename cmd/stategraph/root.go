package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "stategraph",
	Short: "Durable state graph execution engine",
	Long: "Stategraph runs long provisioning processes as durable executions of\n" +
		"declarative state graphs: task, choice, wait, pass, and terminal nodes\n" +
		"with retry and catch policies, persisted between steps.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

// serverURL is shared by every command that talks to a running server.
var serverURL string

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Stategraph server URL")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(graphsCmd)
	rootCmd.AddCommand(dlqCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
