//go:build tools

// Package tools pins the linter version used on the pipeline module. Build and run it
// from the repository root:
//
//	(cd tools && go build -o ../bin/golangci-lint github.com/golangci/golangci-lint/cmd/golangci-lint)
//	./bin/golangci-lint run ./...
package tools

import _ "github.com/golangci/golangci-lint/cmd/golangci-lint"
