// Package main provides satinctl, the maintenance tool for a Satin data directory.
//
// Usage:
//
//	satinctl inspect --config satin.yaml
//	satinctl seed
//	satinctl tags tree
//	satinctl reindex
//	satinctl gen-key
//	satinctl hash-key <api key>
//	satinctl openapi --format yaml
//
// Commands that open the store read the same configuration as the server,
// so the server must be stopped first when using the badger driver.
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
