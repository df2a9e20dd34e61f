// Package internal provides build metadata shared by the binaries.
package internal

// Version is the build version. It is overridden at build time with
// -ldflags="-X github.com/vireopay/fundflow/internal.Version=v1.2.3".
var Version = "dev"
