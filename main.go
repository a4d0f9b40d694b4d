// Package main is the entry point for burstshark.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/burstshark/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
