// Package version holds the build-time version string, overridable via
// -ldflags at build time.
package version

// Version is the running build's version; "dev" outside of a release build.
var Version = "dev"
