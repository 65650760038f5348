package main

import (
	"os"

	"github.com/pathsplit/pathsplit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
