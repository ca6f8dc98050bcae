// Command forge-conductor coordinates automated implementation of a
// requirement graph: it schedules ready requirements, runs an external
// coding agent inside disposable git worktrees, verifies each attempt, and
// fast-forward merges only verified work.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
