// Package version reports what build of flowdemo is running.
//
// Release builds set the variables with -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/flowkit/version.Version=0.4.0 \
//	    -X github.com/kbukum/flowkit/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/flowdemo
//
// Missing values fall back to the VCS stamp embedded by the Go toolchain.
package version
