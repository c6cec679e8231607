// Command simulator runs the Open Protocol tightening-controller
// simulator: a TCP server speaking the Open Protocol wire dialect plus
// an HTTP/WebSocket control surface, built as a cobra command tree
// mirroring steveyegge-beads/cmd/bd.
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
	configPath string

	// rootCtx is cancelled on SIGINT/SIGTERM, mirroring
	// steveyegge-beads/cmd/bd/main.go's signal-aware root context.
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "simulator",
	Short: "simulator - Open Protocol tightening controller simulator",
	Long:  `Simulates an industrial tightening controller speaking the Open Protocol wire dialect over TCP, with an HTTP/WebSocket control surface.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a simulator.toml configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(psetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
