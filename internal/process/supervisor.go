// Package process starts and stops the external gesture recognition process.
package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DefaultScriptName is the recognizer script looked up when no usable path is configured.
const DefaultScriptName = "hand_sign_recognizer.py"

// DefaultStopTimeout is how long Stop waits for a graceful exit before killing.
const DefaultStopTimeout = 5 * time.Second

// LaunchError reports that the recognizer process could not be started.
type LaunchError struct {
	Executable string
	Script     string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s %s: %v", e.Executable, e.Script, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Supervisor launches recognizer processes.
type Supervisor struct {
	logger *zap.Logger
	// lookPath resolves executables; replaced in tests.
	lookPath func(string) (string, error)
	// searchDirs are extra directories searched for a fallback script.
	searchDirs []string
}

// NewSupervisor creates a Supervisor that logs to logger.
func NewSupervisor(logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		logger:   logger.Named("process"),
		lookPath: exec.LookPath,
	}
}

// AddSearchDir registers an additional directory for fallback script discovery.
func (s *Supervisor) AddSearchDir(dir string) {
	s.searchDirs = append(s.searchDirs, dir)
}

// Start launches executable with scriptPath as its argument, merging stdout and
// stderr into a single output stream.
//
// An empty executable selects a virtualenv python when one is found, then python3.
// If scriptPath does not exist, a script with the same base name (or
// DefaultScriptName) is searched for in the working directory and the usual
// install locations, and the substitution is logged.
func (s *Supervisor) Start(ctx context.Context, executable, scriptPath string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if executable == "" {
		executable = findVenvPython()
		if executable == "" {
			executable = "python3"
		}
	}

	exePath, err := s.lookPath(executable)
	if err != nil {
		return nil, &LaunchError{Executable: executable, Script: scriptPath, Err: fmt.Errorf("executable not found: %w", err)}
	}

	script, err := s.resolveScript(scriptPath)
	if err != nil {
		return nil, &LaunchError{Executable: executable, Script: scriptPath, Err: err}
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Executable: executable, Script: script, Err: fmt.Errorf("create output pipe: %w", err)}
	}

	cmd := exec.Command(exePath, script)
	cmd.Dir = filepath.Dir(script)
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &LaunchError{Executable: executable, Script: script, Err: err}
	}
	// The child holds its own copy of the write end.
	pw.Close()

	s.logger.Info("Recognizer process started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("executable", exePath),
		zap.String("script", script))

	return newHandle(cmd, pr, s.logger), nil
}

// resolveScript returns an absolute path to an existing script.
func (s *Supervisor) resolveScript(scriptPath string) (string, error) {
	if scriptPath != "" {
		if info, err := os.Stat(scriptPath); err == nil && !info.IsDir() {
			return absPath(scriptPath), nil
		}
	}

	name := DefaultScriptName
	if scriptPath != "" {
		name = filepath.Base(scriptPath)
	}

	found := s.findScript(name)
	if found == "" && name != DefaultScriptName {
		found = s.findScript(DefaultScriptName)
	}
	if found == "" {
		if scriptPath == "" {
			return "", fmt.Errorf("script %s not found", DefaultScriptName)
		}
		return "", fmt.Errorf("script %s does not exist", scriptPath)
	}

	s.logger.Warn("Configured script not found, using discovered script",
		zap.String("configured", scriptPath),
		zap.String("substitute", found))
	return found, nil
}

// findScript searches the working directory first, then the install locations.
func (s *Supervisor) findScript(name string) string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		name,
		filepath.Join("scripts", name),
		filepath.Join("..", "scripts", name),
	}
	for _, dir := range s.searchDirs {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	if execDir != "" {
		candidates = append(candidates, filepath.Join(execDir, "scripts", name))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".mudra", "scripts", name))
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return absPath(path)
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".mudra/venv/bin/python"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return absPath(path)
		}
	}
	return ""
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
