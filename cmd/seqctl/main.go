// Command seqctl runs conformance scenarios and load benchmarks against
// seqguard containers.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/seqguard/internal/cli"
)

func main() {
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "seqctl: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
