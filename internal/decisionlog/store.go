// Package decisionlog is the append-only per-trader-per-day JSONL store
// for decisions and decision-audit records.
package decisionlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/onlytrade/room-server/internal/common"
)

// Store writes one record per call to Append, one file per trader per
// day, and tails files in reverse filename order to serve ListLatest.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) path(traderID, dayKey string) string {
	return filepath.Join(s.baseDir, traderID, dayKey+".jsonl")
}

func (s *Store) Append(traderID, dayKey string, record any) error {
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return common.AppendLine(s.path(traderID, dayKey), b)
}

// ListLatest scans files for traderID in reverse filename (i.e. reverse
// date) order, tailing each from the end until limit records are
// gathered, skipping malformed lines and tolerating a partial trailing
// line.
func (s *Store) ListLatest(traderID string, limit int, into func() any, sortKey func(record any) int64) ([]any, error) {
	dir := filepath.Join(s.baseDir, traderID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	out := make([]any, 0, limit)
	for _, name := range names {
		if limit > 0 && len(out) >= limit {
			break
		}
		records, err := s.tailFile(filepath.Join(dir, name), into)
		if err != nil {
			continue
		}
		for i := len(records) - 1; i >= 0; i-- {
			if limit > 0 && len(out) >= limit {
				break
			}
			out = append(out, records[i])
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return sortKey(out[i]) > sortKey(out[j])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListDay returns every well-formed record in one trader's file for
// dayKey, in file order.
func (s *Store) ListDay(traderID, dayKey string, into func() any) ([]any, error) {
	return s.tailFile(s.path(traderID, dayKey), into)
}

func (s *Store) tailFile(path string, into func() any) ([]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec := into()
		if err := json.Unmarshal(line, rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Dir(traderID string) string {
	return filepath.Join(s.baseDir, traderID)
}
