package main

import (
	"os"

	"github.com/ppiankov/reachpan/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
