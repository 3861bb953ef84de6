//go:build mage

package main

import (
	"github.com/magefile/mage/sh"
)

// Fetch resolves PDFs for an entries file with the default settings.
func Fetch(entries string) error {
	return sh.RunV("go", "run", cmdPkg, "fetch", entries)
}

// Serve starts the library management API on :8080.
func Serve() error {
	return sh.RunV("go", "run", cmdPkg, "serve")
}
