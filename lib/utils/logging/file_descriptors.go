package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"clangraph/lib/env"
)

var (
	stdoutWriter io.Writer = os.Stdout
	stderrWriter io.Writer = os.Stderr
)

func init() {
	if w, err := teeToFile(os.Stdout, env.StdoutPath); err != nil {
		panic(fmt.Errorf("failed to open stdout file: %w", err))
	} else {
		stdoutWriter = w
	}

	if w, err := teeToFile(os.Stderr, env.StderrPath); err != nil {
		panic(fmt.Errorf("failed to open stderr file: %w", err))
	} else {
		stderrWriter = w
	}
}

// teeToFile returns base unchanged when path is empty, otherwise a writer
// that appends every line to the file as well
func teeToFile(base io.Writer, path string) (io.Writer, error) {
	if path == "" {
		return base, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return io.MultiWriter(base, file), nil
}

// SetOutput redirects log output. Used by tests to capture lines.
func SetOutput(stdout, stderr io.Writer) {
	stdoutWriter = stdout
	stderrWriter = stderr
}
