package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Unit Tests: Hash-Chained Audit Log (TestU_*)
// =============================================================================

func newTestLog(t *testing.T) (*FileLog, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "audit.log")
	log, err := OpenFileLog(path)
	if err != nil {
		t.Fatalf("OpenFileLog() error = %v", err)
	}
	return log, path
}

func issuedEvent(serial string) *Event {
	e := NewEvent(EventCertIssued, OutcomeSuccess)
	e.DeviceID = "client-1"
	e.Subject = "CN=client-1"
	e.Serial = serial
	e.Role = "client"
	return e
}

func TestU_Append_ChainsHashes(t *testing.T) {
	log, _ := newTestLog(t)
	defer log.Close()

	if log.LastHash() != GenesisHash {
		t.Fatalf("LastHash() = %v, want genesis", log.LastHash())
	}

	first := issuedEvent("1")
	if err := log.Append(first); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if first.PrevHash != GenesisHash {
		t.Errorf("first.PrevHash = %v, want genesis", first.PrevHash)
	}
	if !strings.HasPrefix(first.Hash, "sha256:") {
		t.Errorf("first.Hash = %v, want sha256 prefix", first.Hash)
	}

	second := issuedEvent("2")
	if err := log.Append(second); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if second.PrevHash != first.Hash {
		t.Errorf("second.PrevHash = %v, want %v", second.PrevHash, first.Hash)
	}
	if log.LastHash() != second.Hash {
		t.Errorf("LastHash() = %v, want %v", log.LastHash(), second.Hash)
	}
}

func TestU_Append_RejectsIncompleteEvent(t *testing.T) {
	log, _ := newTestLog(t)
	defer log.Close()

	if err := log.Append(&Event{Type: EventCertIssued}); err == nil {
		t.Fatal("Append() of event without outcome must fail")
	}
}

func TestU_OpenFileLog_ResumesChain(t *testing.T) {
	log, path := newTestLog(t)
	if err := log.Append(issuedEvent("1")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	lastHash := log.LastHash()
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenFileLog(path)
	if err != nil {
		t.Fatalf("OpenFileLog() error = %v", err)
	}
	defer reopened.Close()

	if reopened.LastHash() != lastHash {
		t.Fatalf("LastHash() = %v, want %v", reopened.LastHash(), lastHash)
	}

	if err := reopened.Append(issuedEvent("2")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	count, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Verify() count = %d, want 2", count)
	}
}

func TestU_Verify_DetectsTampering(t *testing.T) {
	log, path := newTestLog(t)
	for _, serial := range []string{"1", "2", "3"} {
		if err := log.Append(issuedEvent(serial)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	count, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify() of intact log error = %v", err)
	}
	if count != 3 {
		t.Fatalf("Verify() count = %d, want 3", count)
	}

	// Mutate the middle entry.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	tampered := strings.Replace(string(data), `"serial":"2"`, `"serial":"99"`, 1)
	if tampered == string(data) {
		t.Fatal("test fixture did not match log content")
	}
	if err := os.WriteFile(path, []byte(tampered), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	count, err = Verify(path)
	if err == nil {
		t.Fatal("Verify() of tampered log must fail")
	}
	if count != 1 {
		t.Errorf("Verify() count = %d, want 1 entry before the break", count)
	}
}

func TestU_Verify_EmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	count, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Verify() count = %d, want 0", count)
	}
}

func TestU_NopLog(t *testing.T) {
	var log Log = NopLog{}
	if err := log.Append(issuedEvent("1")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if log.LastHash() != GenesisHash {
		t.Errorf("LastHash() = %v, want genesis", log.LastHash())
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
