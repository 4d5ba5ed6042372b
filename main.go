package main

import (
	"os"

	"github.com/gwsandbox/gwsandbox-ctl/cmd"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
