// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// EnvChromePath overrides browser discovery with an explicit binary.
const EnvChromePath = "CHROME_PATH"

// chromeBinaries are tried in order after CHROME_PATH.
var chromeBinaries = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

// ErrNoRuntime is returned when no usable Chrome or Chromium binary exists.
var ErrNoRuntime = errors.New("no Chrome or Chromium browser found")

// executor abstracts process lookup for testing.
type executor interface {
	Getenv(key string) string
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) Getenv(key string) string {
	return os.Getenv(key)
}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

var defaultExec executor = &osExecutor{}

// DetectBrowser returns the path of the browser binary to launch: the
// CHROME_PATH override when set, else the first candidate on PATH that
// answers --version.
func DetectBrowser() (string, error) {
	return detectBrowser(defaultExec)
}

func detectBrowser(ex executor) (string, error) {
	if override := strings.TrimSpace(ex.Getenv(EnvChromePath)); override != "" {
		path, err := ex.LookPath(override)
		if err != nil {
			return "", fmt.Errorf("%w: %s=%s is not executable: %v", ErrNoRuntime, EnvChromePath, override, err)
		}
		return path, nil
	}

	for _, bin := range chromeBinaries {
		path, err := ex.LookPath(bin)
		if err != nil {
			continue
		}
		if ex.RunSilent(path, "--version") == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s; set %s", ErrNoRuntime, strings.Join(chromeBinaries[:5], ", "), EnvChromePath)
}
