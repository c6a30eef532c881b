package main

import (
	"os"

	"github.com/beacon-works/beacon/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
