// file: main.go
// version: 2.0.0
// guid: 3f0e1d2c-8b7a-4c69-b5d4-e3f2a1b0c9d8

package main

import (
	"fmt"
	"os"

	"github.com/jdfalk/mediashare/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
