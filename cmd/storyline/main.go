package main

import (
	"os"

	"github.com/cadre-oss/storyline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
