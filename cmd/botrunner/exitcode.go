package main

import (
	"errors"

	"github.com/autopost/botrunner/internal/installer"
	"github.com/autopost/botrunner/internal/job"
	"github.com/autopost/botrunner/internal/manifest"
	"github.com/autopost/botrunner/internal/resolver"
	"github.com/autopost/botrunner/internal/runstore"
)

// Process exit codes, one per failure class
const (
	exitOK                 = 0
	exitBotFailed          = 1
	exitSetupFailed        = 2
	exitManifest           = 3
	exitNoVersionMatch     = 4
	exitNoStableFallback   = 5
	exitExecutableNotFound = 6
	exitRunInProgress      = 7
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, manifest.ErrFetch), errors.Is(err, manifest.ErrEmpty), errors.Is(err, manifest.ErrInvalid):
		return exitManifest
	case errors.Is(err, resolver.ErrNoVersionMatch):
		return exitNoVersionMatch
	case errors.Is(err, resolver.ErrNoStableFallback):
		return exitNoStableFallback
	case errors.Is(err, installer.ErrExecutableNotFound):
		return exitExecutableNotFound
	case errors.Is(err, runstore.ErrRunInProgress):
		return exitRunInProgress
	case errors.Is(err, job.ErrBotFailed):
		return exitBotFailed
	default:
		return exitSetupFailed
	}
}
