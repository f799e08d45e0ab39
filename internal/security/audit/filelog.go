package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileLog appends audit records to a newline-delimited JSON file. It
// is both a Sink and a Reader. Each record is flushed before LogEvent
// returns.
type FileLog struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileLog opens (or creates) a JSONL audit log at path.
func NewFileLog(path string) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileLog{path: path, file: f}, nil
}

// LogEvent implements Sink.
func (l *FileLog) LogEvent(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// Read implements Reader by scanning the file front to back. Lines
// that fail to parse are skipped: a torn final line from a crash must
// not hide the rest of the trail.
func (l *FileLog) Read(_ context.Context, start, count int, filter *Filter) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var out []Record
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if filter != nil && !filter.matches(rec) {
			continue
		}
		if skipped < start {
			skipped++
			continue
		}
		out = append(out, rec)
		if count > 0 && len(out) >= count {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("scan audit log: %w", err)
	}
	return out, nil
}

// Close closes the underlying file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
