// Command roadnet builds routable networks from road lines and runs cost
// matrix, service area, route and frequency analyses on them, from the
// command line or over HTTP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
