package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunRecord captures the result of a single verification run
type RunRecord struct {
	Name             string    `json:"name"`
	Status           string    `json:"status"` // "pass", "fail", "error"
	K                int       `json:"k"`
	M                int       `json:"m"`
	N                int       `json:"n"`
	Tile             int       `json:"tile"`
	Seed             uint64    `json:"seed"`
	Trials           int       `json:"trials"`
	Tolerance        float64   `json:"tolerance"`
	Diff             float64   `json:"diff,omitempty"`
	AvgLatencyMicros float64   `json:"avg_latency_micros,omitempty"`
	ExitCode         int       `json:"exit_code"`
	Error            string    `json:"error,omitempty"`
	Device           string    `json:"device,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewRunRecord summarizes the outcome of Run.
func NewRunRecord(name string, cfg Config, rep *Report, err error) RunRecord {
	rec := RunRecord{
		Name:      name,
		Status:    "pass",
		K:         cfg.Dims.K,
		M:         cfg.Dims.M,
		N:         cfg.Dims.N,
		Tile:      cfg.Tile,
		Seed:      cfg.Seed,
		Trials:    cfg.Trials,
		Tolerance: cfg.Tolerance,
		ExitCode:  ExitCode(err),
	}
	if rep != nil {
		rec.Diff = rep.Diff
		rec.AvgLatencyMicros = rep.AvgLatencyMicros()
	}
	if err != nil {
		rec.Status = "error"
		if rec.ExitCode == ExitVerification {
			rec.Status = "fail"
		}
		rec.Error = err.Error()
	}
	return rec
}

// RunLogger appends run records to one JSON file per session
type RunLogger struct {
	mu          sync.Mutex
	records     []RunRecord
	sessionFile string
}

// NewRunLogger creates dir if needed and starts a session file in it
func NewRunLogger(dir, sessionName string) (*RunLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	l := &RunLogger{
		records:     []RunRecord{},
		sessionFile: filepath.Join(dir, fmt.Sprintf("%s_%s.json", sessionName, timestamp)),
	}

	// Write initial file
	return l, l.flush()
}

// Path returns the session file
func (l *RunLogger) Path() string {
	return l.sessionFile
}

// Log records one run and flushes the session to disk
func (l *RunLogger) Log(rec RunRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	l.records = append(l.records, rec)

	// Flush to disk immediately to avoid losing data on crash
	return l.flush()
}

// flush writes records to disk
func (l *RunLogger) flush() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	return os.WriteFile(l.sessionFile, data, 0644)
}

// ReadRunLog loads the records of a session file
func ReadRunLog(path string) ([]RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}
