package main

import (
	"os"

	"github.com/goliatone/go-docgen/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
