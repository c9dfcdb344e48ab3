package main

import (
	"os"

	"github.com/harun/shellbox/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
