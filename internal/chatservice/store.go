// Package chatservice implements per-room public/private chat: append,
// agent replies, proactive emission and post-decision narration.
package chatservice

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/onlytrade/room-server/internal/models"
)

// Store is the JSONL file persistence layer for chat messages: one file
// per room per visibility per day, append-only.
type Store struct {
	baseDir string
	mu      sync.Mutex
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) publicPath(roomID, day string) string {
	return filepath.Join(s.baseDir, "public", roomID, day+".jsonl")
}

func (s *Store) privatePath(roomID, session, day string) string {
	return filepath.Join(s.baseDir, "private", roomID, session, day+".jsonl")
}

func (s *Store) pathFor(msg models.ChatMessage, day string) string {
	if msg.Visibility == models.VisibilityPrivate {
		return s.privatePath(msg.RoomID, msg.UserSessionID, day)
	}
	return s.publicPath(msg.RoomID, day)
}

// Append persists one message, tagging it into the correct day file by
// the message's own created_ts_ms (UTC date, simplest invariant keeping
// append order == file order).
func (s *Store) Append(msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := time.UnixMilli(msg.CreatedTsMs).UTC().Format("2006-01-02")
	path := s.pathFor(msg, day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = f.Write(b)
	return err
}

// ListPublic reads the public feed for roomID across day files in
// descending date order, newest-first, honoring limit and beforeTsMs,
// tolerating partial lines at a file's tail (tailing rule
// applies equally here).
func (s *Store) ListPublic(roomID string, limit int, beforeTsMs int64) ([]models.ChatMessage, error) {
	dir := filepath.Join(s.baseDir, "public", roomID)
	return s.listDir(dir, limit, beforeTsMs)
}

func (s *Store) ListPrivate(roomID, session string, limit int, beforeTsMs int64) ([]models.ChatMessage, error) {
	dir := filepath.Join(s.baseDir, "private", roomID, session)
	return s.listDir(dir, limit, beforeTsMs)
}

func (s *Store) listDir(dir string, limit int, beforeTsMs int64) ([]models.ChatMessage, error) {
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

	out := make([]models.ChatMessage, 0, limit)
	for _, name := range names {
		if limit > 0 && len(out) >= limit {
			break
		}
		msgs, err := readJSONLTolerant(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		for i := len(msgs) - 1; i >= 0; i-- {
			if limit > 0 && len(out) >= limit {
				break
			}
			if beforeTsMs > 0 && msgs[i].CreatedTsMs >= beforeTsMs {
				continue
			}
			out = append(out, msgs[i])
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedTsMs != out[j].CreatedTsMs {
			return out[i].CreatedTsMs > out[j].CreatedTsMs
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func readJSONLTolerant(path string) ([]models.ChatMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []models.ChatMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m models.ChatMessage
		if err := json.Unmarshal(line, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func newMessageID(roomID string, tsMs int64, seq int64) string {
	return fmt.Sprintf("%s-%d-%d", roomID, tsMs, seq)
}
