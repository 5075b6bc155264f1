// Package main provides the CLI entry point for the Parley conversational
// gateway.
//
// Parley multiplexes per-session chat over a websocket channel, forwards
// turns to the Gemini API, and lets the model call a small fixed tool set
// (web search, page fetch, Notion search, current time) before answering.
//
// # Basic Usage
//
// Start the server:
//
//	parley serve --config parley.yaml
//
// # Environment Variables
//
//   - GOOGLE_API_KEY: Gemini API key
//   - GOOGLE_CSE_API_KEY / GOOGLE_CSE_ID: Custom Search credentials
//     (enables the web_search tool)
//   - NOTION_API_KEY: Notion integration token (enables notion_search)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "parley",
		Short:         "Websocket gateway for tool-calling Gemini conversations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd(), buildVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("parley", version)
		},
	}
}
