// Package version exposes build metadata for binaries built on nupidentity.
//
//	go build -ldflags "-X github.com/kbukum/nupidentity/version.Version=1.4.0"
package version
