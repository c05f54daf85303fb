package main

import (
	"os"

	"github.com/rustyeddy/arena/cmd/arena/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
