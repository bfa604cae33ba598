// Package storage keeps finished match results in a JSON-lines journal on
// disk, one result per line.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/YvesLemasson/curve-io-sub000/game"
)

const journalFile = "results.jsonl"

type Journal struct {
	mu   sync.Mutex
	path string
}

// NewJournal opens the journal under dir, creating the directory if needed.
func NewJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &Journal{path: filepath.Join(dir, journalFile)}, nil
}

func (j *Journal) Path() string { return j.path }

// Record appends one result.
func (j *Journal) Record(res game.GameResult) error {
	line, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	log.Printf("Recorded result of room %s (winner %q)", res.RoomID, res.Winner)
	return nil
}

// Recent returns up to limit of the newest results, newest first. A missing
// journal reads as empty; corrupt lines are skipped.
func (j *Journal) Recent(limit int) ([]game.GameResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	var all []game.GameResult
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var res game.GameResult
		if err := json.Unmarshal(sc.Bytes(), &res); err != nil {
			log.Printf("unexpected journal line in %s: %v", j.path, err)
			continue
		}
		all = append(all, res)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]game.GameResult, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
