// Package main provides the speakerid CLI tool.
//
// Usage:
//
//	speakerid [flags] <command> [args]
//
// Commands:
//
//	register       - Enroll a speaker from an audio file
//	identify       - Identify the speaker of an audio file
//	record         - Enroll or identify from the microphone
//	auto-register  - Enroll every file in the reference directory
//	delete         - Remove a speaker
//	list           - List enrolled speakers
//	threshold      - Show or set the acceptance threshold
//	history        - Show or clear identification history
//	watch          - Enroll reference files as they change
//	serve          - Run the localhost HTTP API
//	shell          - Interactive operator shell
//	config         - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.giztoy/speakerid/
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/speakerid/cmd/speakerid/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
