package main

import (
	"os"

	"github.com/Vesta-Code/vesta/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
