package main

import (
	"os"

	"vex/internal/cli"
)

func main() {
	if err := cli.NewApp().Execute(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}
