//go:build linux

package main

import (
	"fmt"
	"strings"

	"github.com/pipali/pipali/internal/sandbox"
)

// runHelper is the re-exec target for sandboxed execution: apply Landlock
// rules to this process, then exec the shell with the command.
func runHelper(args []string) error {
	var rules, command string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--rules":
			i++
			if i >= len(args) {
				return fmt.Errorf("--rules requires a value")
			}
			rules = args[i]
		case "--":
			if i+1 < len(args) {
				command = strings.Join(args[i+1:], " ")
			}
			i = len(args)
		}
	}
	if rules == "" || command == "" {
		return fmt.Errorf("usage: pipalid %s --rules <payload> -- <command>", helperCommand)
	}
	return sandbox.RunHelper(rules, command)
}
