// Command ragctl is the command-line front end for project-rag: index a
// codebase, run hybrid search against it, and inspect or repair the result.
package main

import (
	"fmt"
	"os"

	"github.com/Brainwires/project-rag/cmd/ragctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
