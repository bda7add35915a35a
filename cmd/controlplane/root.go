// Package cmd wires the control plane's cobra commands: a bare rootCmd
// plus one subcommand per runtime mode. Settings come from the shared
// config loader (environment and .env), not from flags.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "controlplane",
	Short: "Character Control Plane backend for an AI VTuber renderer",
	Long:  "Bridges a live-model renderer to chat ingest, an LLM agent, TTS/ASR collaborators, and an autonomous speech scheduler over REST and a bidirectional websocket.",
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
