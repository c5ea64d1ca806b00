// Package logger provides structured logging setup and crash reporting for ytflow.
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// CrashLogDir is the directory for crash reports relative to the data dir
	CrashLogDir = "crash_logs"

	// MaxCrashLogs is the maximum number of crash reports to keep
	MaxCrashLogs = 10
)

// CrashContext stores what was happening when a panic hit.
type CrashContext struct {
	mu         sync.RWMutex
	sessionID  string
	stage      string
	lastPrompt string
	command    string
	version    string
	basePath   string
}

var globalContext = &CrashContext{}

// SetBasePath sets the data directory crash reports are written under.
func SetBasePath(path string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.basePath = path
}

// SetVersion sets the application version for crash reports.
func SetVersion(version string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.version = version
}

// SetCommand sets the current CLI command.
func SetCommand(cmd string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.command = cmd
}

// SetSession records the generation session and the stage it is in.
func SetSession(id, stage string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.sessionID = id
	globalContext.stage = stage
}

// SetLastPrompt sets the last LLM prompt for crash context.
func SetLastPrompt(prompt string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.lastPrompt = truncateForLog(prompt, 2000)
}

func truncateForLog(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	return value[:maxLen] + "... [truncated]"
}

// CrashReport is the JSON document written for each panic.
type CrashReport struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	Command    string    `json:"command"`
	SessionID  string    `json:"session_id,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	PanicValue string    `json:"panic_value"`
	StackTrace string    `json:"stack_trace"`
	LastPrompt string    `json:"last_prompt,omitempty"`
	GoVersion  string    `json:"go_version"`
	Platform   string    `json:"platform"`
}

// HandlePanic recovers a panic, writes a crash report and exits.
// Usage: defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}

	report := newCrashReport(r)
	path, err := writeCrashReport(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n[CRASH] Failed to write crash report: %v\n", err)
		fmt.Fprintf(os.Stderr, "[CRASH] Panic: %v\n%s\n", r, report.StackTrace)
		os.Exit(2)
	}

	fmt.Fprintf(os.Stderr, "\nytflow crashed: %v\n", r)
	if report.SessionID != "" {
		fmt.Fprintf(os.Stderr, "Session %s was in stage %q; its progress is kept in the session store.\n", report.SessionID, report.Stage)
	}
	fmt.Fprintf(os.Stderr, "Crash report: %s\n", path)
	os.Exit(2)
}

func newCrashReport(panicValue any) CrashReport {
	globalContext.mu.RLock()
	defer globalContext.mu.RUnlock()

	return CrashReport{
		Timestamp:  time.Now(),
		Version:    globalContext.version,
		Command:    globalContext.command,
		SessionID:  globalContext.sessionID,
		Stage:      globalContext.stage,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(debug.Stack()),
		LastPrompt: globalContext.lastPrompt,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func writeCrashReport(report CrashReport) (string, error) {
	dir := crashDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	if err := pruneCrashReports(dir, MaxCrashLogs-1); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Failed to prune crash reports: %v\n", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode crash report: %w", err)
	}
	path := filepath.Join(dir, crashFileName(report.Timestamp))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

func crashDir() string {
	globalContext.mu.RLock()
	basePath := globalContext.basePath
	globalContext.mu.RUnlock()

	if basePath == "" {
		basePath = ".ytflow"
	}
	return filepath.Join(basePath, CrashLogDir)
}

func crashFileName(t time.Time) string {
	return fmt.Sprintf("crash_%s.json", t.Format("20060102_150405.000"))
}

// pruneCrashReports keeps at most keep reports, removing the oldest.
func pruneCrashReports(dir string, keep int) error {
	reports, err := ListCrashReports(dir)
	if err != nil {
		return err
	}
	if len(reports) <= keep {
		return nil
	}
	for _, path := range reports[:len(reports)-keep] {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old crash report %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// ListCrashReports returns crash report paths in dir, oldest first.
func ListCrashReports(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "crash_") && strings.HasSuffix(e.Name(), ".json") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
