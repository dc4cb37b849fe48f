// Command vimlm connects an editor to a language model through a mailbox
// directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	homeFlag  string
	debugFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "vimlm",
	Short: "Editor to LLM bridge over a mailbox directory",
	Long: `vimlm watches a mailbox directory for requests written by the editor,
sends them to a local or hosted model and streams the reply into response.md.

Run without a subcommand to serve.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "vimlm home directory (default ~/vimlm)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging, overriding cfg.json")

	rootCmd.AddCommand(serveCmd, ingestCmd, deployCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vimlm: %v\n", err)
		os.Exit(1)
	}
}
