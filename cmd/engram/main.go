package main

import (
	"os"

	"github.com/engram/engram/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
