// Localchat relays chat completions from a local OpenAI-compatible model
// server (vLLM or Ollama) and records every conversation.
//
// Usage:
//
//	# Start the relay server with default configuration
//	localchat serve
//
//	# Start with a custom configuration file
//	localchat serve --config /etc/localchat/config.yaml
//
//	# Chat in the terminal without persistence
//	localchat chat --model llama3:8b
//
//	# List, export or import stored threads
//	localchat threads list --output csv
//	localchat threads export --file threads.json
//	localchat threads import threads.json
//
//	# Check a configuration file
//	localchat config validate --config config.yaml
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
