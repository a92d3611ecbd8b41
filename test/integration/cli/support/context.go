package support

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastStdout   string
	LastStderr   string
	LastOutput   string // stdout followed by stderr
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	WorkingDir  string // scenario directory, also the process working directory
	originalDir string
	savedEnv    map[string]*string

	// Detection server state
	HTTPServer         *httptest.Server
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string
	LastWSReply        string

	// Test artifacts
	CreatedFiles []string
}

// NewTestContext creates a scenario directory and makes it the working directory,
// so relative paths in commands and configuration resolve inside it.
func NewTestContext() (*TestContext, error) {
	originalDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "langdetect-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	if err := os.Chdir(tempDir); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to enter temp directory: %w", err)
	}

	ctx := &TestContext{
		WorkingDir:      tempDir,
		originalDir:     originalDir,
		savedEnv:        map[string]*string{},
		LastHTTPHeaders: map[string]string{},
	}

	// keep user configuration out of the scenario
	ctx.SetEnv("HOME", tempDir)
	ctx.SetEnv("XDG_CONFIG_HOME", tempDir)
	return ctx, nil
}

// SetEnv sets an environment variable for the rest of the scenario.
func (testCtx *TestContext) SetEnv(name, value string) {
	if _, saved := testCtx.savedEnv[name]; !saved {
		if old, ok := os.LookupEnv(name); ok {
			testCtx.savedEnv[name] = &old
		} else {
			testCtx.savedEnv[name] = nil
		}
	}
	_ = os.Setenv(name, value)
}

// Path returns the absolute path of name inside the scenario directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.WorkingDir, name)
}

// TrackFile adds a file outside the scenario directory to be cleaned up after tests.
func (testCtx *TestContext) TrackFile(filename string) {
	testCtx.CreatedFiles = append(testCtx.CreatedFiles, testCtx.Path(filename))
}

// Cleanup stops the server, restores environment and working directory, and
// removes every scenario artifact.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}

	for name, old := range testCtx.savedEnv {
		var err error
		if old == nil {
			err = os.Unsetenv(name)
		} else {
			err = os.Setenv(name, *old)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %s: %w", name, err))
		}
	}

	if err := os.Chdir(testCtx.originalDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to restore working directory: %w", err))
	}

	for _, file := range testCtx.CreatedFiles {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to remove file %s: %w", file, err))
		}
	}

	if err := os.RemoveAll(testCtx.WorkingDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.WorkingDir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %w", errors.Join(errs...))
	}
	return nil
}
