package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/site-packager/internal/logger"
)

const (
	// markerFilename marks that a packager is mutating the output tree right now.
	markerFilename = "site-packager-marker.bin"

	// markerLifetime is the period after which a stale marker is ignored.
	markerLifetime = 30 * time.Second
)

// errPackagerRunning indicates that another packager instance owns the output tree.
var errPackagerRunning = errors.New("another packager instance is running")

// IsPackagerRunningNow checks presence of a packaging marker and attempts
// recovery if it looks stale. The output tree is fully removed on every run,
// so two concurrent instances would corrupt each other's work.
func IsPackagerRunningNow(ctx context.Context) bool {
	logger.Info(ctx, "Checking for the presence of a packaging marker")

	fileInfo, err := os.Stat(markerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The packaging marker is too old, attempting cleanup")

		if anotherInstanceRunning() {
			return true
		}

		if err = os.Remove(markerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Packaging marker not found, continuing")
		return false
	}

	logger.Infof(ctx, "Unable to read packaging marker: %v", err)

	return false
}

// anotherInstanceRunning reports whether a different process with our
// executable name is alive. A failed process listing counts as running,
// erring on the side of refusing the run.
func anotherInstanceRunning() bool {
	processList, err := ps.Processes()
	if err != nil {
		return true
	}

	var (
		executable    = filepath.Base(os.Args[0])
		thisProcessID = os.Getpid()
	)

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == executable {
			return true
		}
	}

	return false
}

// acquireMarker records this process as the active packager.
func acquireMarker() error {
	contents := []byte(strconv.Itoa(os.Getpid()))

	if err := os.WriteFile(markerFilename, contents, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", markerFilename, err)
	}

	return nil
}

// releaseMarker removes the marker once the run is over.
func releaseMarker(ctx context.Context) {
	if err := os.Remove(markerFilename); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf(ctx, "Unable to remove packaging marker: %v", err)
	}
}
