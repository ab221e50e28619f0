// Package main is the operator CLI for the Sphincs alert pipeline.
//
// Import Path: sphincs.io/sphincs/cmd/sphincsctl
package main

import (
	"fmt"
	"os"

	"sphincs.io/sphincs/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sphincsctl: %v\n", err)
		os.Exit(1)
	}
}
