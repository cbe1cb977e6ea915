package main

import (
	"errors"
	"os"

	"github.com/danmuck/gridctl/internal/control"
	"github.com/danmuck/gridctl/internal/logging"
	"github.com/rs/zerolog/log"
)

const (
	exitError        = 1
	exitCommandError = 2
	exitCheckFailed  = 3
)

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd(newApp(os.Stdout)).Execute(); err != nil {
		log.Error().Err(err).Msg("gridctl failed")
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var cmdErr *control.CommandError
	if errors.As(err, &cmdErr) {
		return exitCommandError
	}
	var outErr *control.OutputError
	if errors.As(err, &outErr) {
		return exitCheckFailed
	}
	return exitError
}
