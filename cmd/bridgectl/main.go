// Command bridgectl is the operator CLI of the RSS to Bluesky pipeline.
package main

import (
	"fmt"
	"os"
)

func main() {
	c := &cli{out: os.Stdout, errOut: os.Stderr, open: appBackend}

	if err := newRootCmd(c).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
