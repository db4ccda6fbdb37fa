package transcript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the snapshot location relative to the working directory.
const DefaultPath = "history.yaml"

// ErrMalformed is returned when a snapshot exists but cannot be decoded.
var ErrMalformed = errors.New("malformed transcript")

// Store persists transcript snapshots. Each Save replaces the previous one.
type Store interface {
	Load() ([]Message, error)
	Save([]Message) error
}

// FileStore keeps the snapshot as a YAML list of {role, content} entries.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path, or DefaultPath when
// path is empty.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path}
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file is an empty transcript.
func (s *FileStore) Load() ([]Message, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return Decode(data)
}

// Save writes msgs to the snapshot file.
func (s *FileStore) Save(msgs []Message) error {
	data, err := Encode(msgs)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create transcript directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// Encode renders msgs in the snapshot format.
func Encode(msgs []Message) ([]byte, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	data, err := yaml.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot. Role names are normalized; unknown roles are
// treated as malformed input.
func Decode(data []byte) ([]Message, error) {
	var msgs []Message
	if err := yaml.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i, m := range msgs {
		role, err := ParseRole(string(m.Role))
		if err != nil {
			return nil, fmt.Errorf("%w: message %d: %v", ErrMalformed, i, err)
		}
		msgs[i].Role = role
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs, nil
}

// MemoryStore keeps the snapshot in memory.
type MemoryStore struct {
	mu    sync.Mutex
	msgs  []Message
	saves int
	err   error
}

// NewMemoryStore creates a MemoryStore preloaded with msgs.
func NewMemoryStore(msgs ...Message) *MemoryStore {
	s := &MemoryStore{}
	if len(msgs) > 0 {
		s.msgs = append([]Message(nil), msgs...)
	}
	return s
}

// FailWith makes subsequent Load and Save calls return err.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Load returns a copy of the stored snapshot.
func (s *MemoryStore) Load() ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(s.msgs) == 0 {
		return nil, nil
	}
	return append([]Message(nil), s.msgs...), nil
}

// Save replaces the stored snapshot with a copy of msgs.
func (s *MemoryStore) Save(msgs []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append([]Message(nil), msgs...)
	s.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
