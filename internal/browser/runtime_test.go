// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	env           map[string]string
	availableBins map[string]bool // binary -> whether LookPath succeeds
	runnable      map[string]bool // resolved path -> whether --version succeeds
	ran           []string
}

func (m *mockExecutor) Getenv(key string) string { return m.env[key] }

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		if filepath.IsAbs(file) {
			return file, nil
		}
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(name string, args ...string) error {
	m.ran = append(m.ran, name+" "+strings.Join(args, " "))
	if m.runnable[name] {
		return nil
	}
	return errors.New("command failed: " + name)
}

func TestDetectBrowser(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantPath string
		wantErr  bool
	}{
		{
			name: "google-chrome first",
			exec: &mockExecutor{
				availableBins: map[string]bool{"google-chrome": true, "chromium": true},
				runnable:      map[string]bool{"/usr/bin/google-chrome": true, "/usr/bin/chromium": true},
			},
			wantPath: "/usr/bin/google-chrome",
		},
		{
			name: "chromium fallback",
			exec: &mockExecutor{
				availableBins: map[string]bool{"chromium": true},
				runnable:      map[string]bool{"/usr/bin/chromium": true},
			},
			wantPath: "/usr/bin/chromium",
		},
		{
			name: "binary on PATH but broken",
			exec: &mockExecutor{
				availableBins: map[string]bool{"google-chrome": true, "chromium-browser": true},
				runnable:      map[string]bool{"/usr/bin/chromium-browser": true},
			},
			wantPath: "/usr/bin/chromium-browser",
		},
		{
			name: "CHROME_PATH override skips probing",
			exec: &mockExecutor{
				env:           map[string]string{EnvChromePath: "/opt/chrome/chrome"},
				availableBins: map[string]bool{"/opt/chrome/chrome": true, "google-chrome": true},
			},
			wantPath: "/opt/chrome/chrome",
		},
		{
			name: "CHROME_PATH not executable",
			exec: &mockExecutor{
				env:           map[string]string{EnvChromePath: "/missing/chrome"},
				availableBins: map[string]bool{"google-chrome": true},
				runnable:      map[string]bool{"/usr/bin/google-chrome": true},
			},
			wantErr: true,
		},
		{
			name:    "nothing installed",
			exec:    &mockExecutor{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := detectBrowser(tt.exec)
			if tt.wantErr {
				if !errors.Is(err, ErrNoRuntime) {
					t.Fatalf("detectBrowser() error = %v, want ErrNoRuntime", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("detectBrowser: %v", err)
			}
			if got != tt.wantPath {
				t.Errorf("detectBrowser() = %q, want %q", got, tt.wantPath)
			}
		})
	}
}

func TestDetectBrowserOverrideDoesNotRun(t *testing.T) {
	ex := &mockExecutor{
		env:           map[string]string{EnvChromePath: "/opt/chrome/chrome"},
		availableBins: map[string]bool{"/opt/chrome/chrome": true},
	}
	if _, err := detectBrowser(ex); err != nil {
		t.Fatalf("detectBrowser: %v", err)
	}
	if len(ex.ran) != 0 {
		t.Errorf("override should not be probed, ran %v", ex.ran)
	}
}

func TestSanitizeProfileName(t *testing.T) {
	tests := map[string]string{
		"":                 "default",
		"   ":              "default",
		"work":             "work",
		"My Lab Profile":   "My_Lab_Profile",
		"../../etc/passwd": "etc_passwd",
		"...":              "default",
		"uni-vpn.2":        "uni-vpn.2",
		"ü/ñ":              "default",
	}
	for in, want := range tests {
		if got := SanitizeProfileName(in); got != want {
			t.Errorf("SanitizeProfileName(%q) = %q, want %q", in, got, want)
		}
	}

	if got := ProfileDir("/data/profiles", "a b"); got != filepath.Join("/data/profiles", "a_b") {
		t.Errorf("ProfileDir = %q", got)
	}
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("no chrome")
	var a Assist = Unavailable{Err: cause}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	res := a.Resolve(ctx, Request{DOI: "10.1/x"})
	if res.Outcome != OutcomeUnavailable || !errors.Is(res.Err, cause) {
		t.Errorf("Resolve() = %+v", res)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
