package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

const (
	// GenesisHash anchors the chain before any entry exists.
	GenesisHash = "sha256:genesis"

	hashPrefix = "sha256:"
)

// FileLog appends hash-chained audit entries to a JSONL file.
type FileLog struct {
	mu       sync.Mutex
	file     *os.File
	lastHash string
	path     string
}

var _ Log = (*FileLog)(nil)

// OpenFileLog opens (or creates) an audit log file in append mode. When the
// file already holds entries, the chain continues from the last one.
func OpenFileLog(path string) (*FileLog, error) {
	lastHash := GenesisHash
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		hash, err := lastHashOf(data)
		if err != nil {
			return nil, fmt.Errorf("failed to resume audit chain: %w", err)
		}
		lastHash = hash
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &FileLog{file: file, lastHash: lastHash, path: path}, nil
}

// lastHashOf extracts the hash of the final entry in raw JSONL data.
func lastHashOf(data []byte) (string, error) {
	var lastLine []byte
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := bytes.TrimSpace(scanner.Bytes()); len(line) > 0 {
			lastLine = append(lastLine[:0], line...)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if len(lastLine) == 0 {
		return GenesisHash, nil
	}

	var entry struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(lastLine, &entry); err != nil {
		return "", fmt.Errorf("failed to parse last entry: %w", err)
	}
	if entry.Hash == "" {
		return "", fmt.Errorf("last entry carries no hash")
	}
	return entry.Hash, nil
}

// Append chains the event onto the log and syncs it to disk.
func (l *FileLog) Append(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid audit event: %w", err)
	}

	event.PrevHash = l.lastHash
	canonical, err := event.canonicalJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize audit event: %w", err)
	}
	event.Hash = chainHash(canonical, l.lastHash)

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize audit event: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}

	// Durability before acknowledgement; a lost entry breaks the chain's
	// value as evidence.
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}

	l.lastHash = event.Hash
	return nil
}

// Close syncs and closes the underlying file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}

// LastHash returns the hash of the most recent entry.
func (l *FileLog) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastHash
}

// Path returns the log's file path.
func (l *FileLog) Path() string {
	return l.path
}

// chainHash computes sha256(canonical || prevHash).
func chainHash(canonical []byte, prevHash string) string {
	h := sha256.New()
	h.Write(canonical)
	h.Write([]byte(prevHash))
	return hashPrefix + hex.EncodeToString(h.Sum(nil))
}

// Verify walks an audit log file and checks the hash chain end to end.
// It returns the number of verified entries; on a broken chain the count
// covers the entries before the break.
func Verify(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read audit log: %w", err)
	}

	verified := 0
	expectedPrev := GenesisHash
	line := 0

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return verified, fmt.Errorf("line %d: invalid entry: %w", line, err)
		}
		if event.PrevHash != expectedPrev {
			return verified, fmt.Errorf("line %d: chain broken: expected prev %s, got %s", line, expectedPrev, event.PrevHash)
		}

		canonical, err := event.canonicalJSON()
		if err != nil {
			return verified, fmt.Errorf("line %d: failed to serialize entry: %w", line, err)
		}
		if want := chainHash(canonical, event.PrevHash); event.Hash != want {
			return verified, fmt.Errorf("line %d: hash mismatch", line)
		}

		expectedPrev = event.Hash
		verified++
	}
	if err := scanner.Err(); err != nil {
		return verified, fmt.Errorf("failed to scan audit log: %w", err)
	}

	return verified, nil
}
