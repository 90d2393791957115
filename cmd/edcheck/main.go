// Package main provides the edcheck binary entry point.
// Edcheck verifies clinical-trial edit-check rules with an SMT solver
// and generates test suites for them with multiple techniques.
package main

import (
	"fmt"
	"os"
	"runtime"

	// Register LLM providers via init()
	_ "github.com/metacogma/edc-rule-validator-sub000/llm/providers"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "edcheck"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
