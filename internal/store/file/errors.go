package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nextlevelbuilder/anyedit/internal/store"
)

// DefaultPath is where error reports go when no path is configured.
const DefaultPath = "edit_any_message_bot_errors.txt"

// FileErrorStore appends error records to a JSON-lines file.
type FileErrorStore struct {
	path string
	mu   sync.Mutex
}

func NewFileErrorStore(path string) (*FileErrorStore, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create error log dir: %w", err)
		}
	}
	return &FileErrorStore{path: path}, nil
}

func (s *FileErrorStore) Record(_ context.Context, rec store.ErrorRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode error record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write error log: %w", err)
	}
	return nil
}

func (s *FileErrorStore) Recent(_ context.Context, limit int) ([]store.ErrorRecord, error) {
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open error log: %w", err)
	}
	defer f.Close()

	var all []store.ErrorRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec store.ErrorRecord
		// Skip lines that aren't records (e.g. hand edits); the log is append-only text.
		if json.Unmarshal(sc.Bytes(), &rec) != nil {
			continue
		}
		all = append(all, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read error log: %w", err)
	}

	out := make([]store.ErrorRecord, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *FileErrorStore) Close() error { return nil }
