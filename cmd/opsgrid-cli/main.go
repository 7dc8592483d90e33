package main

import (
	"fmt"
	"os"

	"github.com/noah-isme/opsgrid-api/internal/cli"
)

func main() {
	if err := cli.Execute(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "opsgrid-cli: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
