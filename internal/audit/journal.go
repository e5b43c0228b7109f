package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Journal is a hash-chained, append-only file journal. It acts as the
// dead-letter sink for suspicious activities when the primary store is
// unavailable: each line carries the previous entry's checksum plus its own,
// so truncation or tampering is detectable on replay.
type Journal struct {
	path     string
	mu       sync.Mutex
	lastHash string
	logger   *zap.Logger
}

type journalEntry struct {
	Activity     *SuspiciousActivity `json:"activity"`
	PrevChecksum string              `json:"prev_checksum"`
	WrittenAt    time.Time           `json:"written_at"`
	Checksum     string              `json:"checksum,omitempty"`
}

// OpenJournal opens or creates the journal file and restores the hash chain
// from the last entry.
func OpenJournal(path string, logger *zap.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	file.Close()

	j := &Journal{
		path:   path,
		logger: logger.With(zap.String("component", "audit_journal")),
	}
	entries, err := j.readEntries()
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		j.lastHash = entries[len(entries)-1].Checksum
	}
	return j, nil
}

// Append writes one activity to the journal and advances the hash chain
func (j *Journal) Append(activity *SuspiciousActivity) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := journalEntry{
		Activity:     activity,
		PrevChecksum: j.lastHash,
		WrittenAt:    time.Now().UTC(),
	}
	entry.Checksum = checksumEntry(entry)

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}

	file, err := os.OpenFile(j.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal for append: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}

	j.lastHash = entry.Checksum
	return nil
}

// Replay verifies the hash chain and returns all journaled activities in
// write order. Used to drain the dead-letter queue back into the primary
// store after an outage.
func (j *Journal) Replay() ([]SuspiciousActivity, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readEntries()
	if err != nil {
		return nil, err
	}

	activities := make([]SuspiciousActivity, 0, len(entries))
	prev := ""
	for i, entry := range entries {
		if entry.PrevChecksum != prev {
			return nil, fmt.Errorf("journal chain broken at entry %d", i)
		}
		if checksumEntry(entry) != entry.Checksum {
			return nil, fmt.Errorf("journal entry %d failed checksum verification", i)
		}
		if entry.Activity != nil {
			activities = append(activities, *entry.Activity)
		}
		prev = entry.Checksum
	}
	return activities, nil
}

// EntryCount returns the number of journaled entries
func (j *Journal) EntryCount() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Truncate resets the journal after a successful drain
func (j *Journal) Truncate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.Truncate(j.path, 0); err != nil {
		return fmt.Errorf("truncate journal: %w", err)
	}
	j.lastHash = ""
	return nil
}

func (j *Journal) readEntries() ([]journalEntry, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	var entries []journalEntry
	for i, line := range bytes.Split(data, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		var entry journalEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("corrupt journal line %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// checksumEntry hashes the entry with its own checksum field zeroed.
// Marshaling is deterministic: struct fields keep order and map keys sort.
func checksumEntry(entry journalEntry) string {
	entry.Checksum = ""
	payload, err := json.Marshal(entry)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
