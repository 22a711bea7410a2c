// Command billingctl evaluates subscription transitions and refund eligibility,
// either offline from JSON snapshots or against the live billing stores.
package main

import (
	"fmt"
	"os"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
