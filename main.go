package main

import (
	"os"

	"policy-report/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
