package service

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"bchfaucet/internal/config"
	"bchfaucet/internal/logger"
)

const (
	logEntryLimit   = 100
	maxLogLineBytes = 1 << 20
)

// LogResult is the body returned by the log endpoint.
type LogResult struct {
	Success bool                     `json:"success"`
	Data    []map[string]interface{} `json:"data"`
}

// LogService returns the newest entries of today's log file.
type LogService interface {
	Read(ctx context.Context, password string) (*LogResult, error)
}

type logService struct {
	cfg config.LogConfig
	env string
	now func() time.Time
}

// NewLogService creates a reader over the files written by logger.New.
func NewLogService(cfg config.LogConfig, env string) LogService {
	return &logService{cfg: cfg, env: env, now: time.Now}
}

func (s *logService) Read(ctx context.Context, password string) (*LogResult, error) {
	if s.cfg.Password == "" || subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) != 1 {
		return &LogResult{Success: false}, nil
	}

	path := filepath.Join(s.cfg.Dir, logger.FileName(s.cfg.App, s.env, s.now()))
	entries, err := readEntries(ctx, path)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entryTime(entries[i]).After(entryTime(entries[j]))
	})
	if len(entries) > logEntryLimit {
		entries = entries[:logEntryLimit]
	}
	return &LogResult{Success: true, Data: entries}, nil
}

func readEntries(ctx context.Context, path string) ([]map[string]interface{}, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	entries := []map[string]interface{}{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLogLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var entry map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return entries, nil
}

// entryTime accepts ISO8601 strings and epoch seconds. Anything else sorts last.
func entryTime(entry map[string]interface{}) time.Time {
	switch ts := entry["timestamp"].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
	case float64:
		sec := int64(ts)
		return time.Unix(sec, int64((ts-float64(sec))*1e9))
	}
	return time.Time{}
}
