// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"path/filepath"
	"regexp"
	"strings"
)

var profileUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeProfileName maps a user-supplied profile name to a safe directory
// name. Empty results become "default".
func SanitizeProfileName(name string) string {
	s := profileUnsafe.ReplaceAllString(strings.TrimSpace(name), "_")
	s = strings.Trim(s, "._-")
	if s == "" {
		return "default"
	}
	return s
}

// ProfileDir returns the user-data directory for profile under dir.
func ProfileDir(dir, profile string) string {
	return filepath.Join(dir, SanitizeProfileName(profile))
}
