package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testRecords() []*PairingRecord {
	return []*PairingRecord{
		{
			Serial:        "2000",
			Kind:          HandshakeLegacy,
			PairingCode:   "abcdefghijklmnop",
			AppInstanceID: 1,
			PairedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			Serial:        "1000",
			Kind:          HandshakeJPAKE,
			PairingCode:   "123456",
			AppInstanceID: 1,
			DerivedSecret: bytes.Repeat([]byte{0xAB}, 32),
			ServerNonce:   []byte{1, 2, 3, 4, 5, 6, 7, 8},
			PairedAt:      time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		},
	}
}

func exerciseStore(t *testing.T, store PairingStore) {
	t.Helper()

	if _, err := store.Load("1000"); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("Load() on empty store error = %v, want ErrNotPaired", err)
	}

	for _, rec := range testRecords() {
		if err := store.Save(rec); err != nil {
			t.Fatalf("Save(%s) error = %v", rec.Serial, err)
		}
	}

	got, err := store.Load("1000")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := testRecords()[1]
	if got.PairingCode != want.PairingCode || !bytes.Equal(got.DerivedSecret, want.DerivedSecret) ||
		!bytes.Equal(got.ServerNonce, want.ServerNonce) || !got.PairedAt.Equal(want.PairedAt) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	list, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Serial != "1000" || list[1].Serial != "2000" {
		t.Errorf("List() order = %v", list)
	}

	if err := store.Save(&PairingRecord{Serial: "3000", Kind: HandshakeJPAKE, PairingCode: "123456"}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Save(invalid) error = %v, want ErrInvalidRecord", err)
	}

	if err := store.Delete("2000"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete("missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
	if _, err := store.Load("2000"); !errors.Is(err, ErrNotPaired) {
		t.Errorf("Load() after Delete error = %v, want ErrNotPaired", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	rec := testRecords()[1]
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rec.DerivedSecret[0] = 0

	got, _ := store.Load(rec.Serial)
	if got.DerivedSecret[0] != 0xAB {
		t.Error("store aliases saved record")
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pairings.json")
	exerciseStore(t, NewFileStore(path))

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	// A second store on the same file sees the persisted state.
	reopened := NewFileStore(path)
	got, err := reopened.Load("1000")
	if err != nil {
		t.Fatalf("Load() after reopen error = %v", err)
	}
	if got.Kind != HandshakeJPAKE {
		t.Errorf("Kind = %v, want JPAKE", got.Kind)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Load("1"); err == nil {
		t.Error("Load() on corrupt file succeeded")
	}

	if err := os.WriteFile(path, []byte(`{"version":99,"records":[]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).List(); err == nil {
		t.Error("List() on unknown version succeeded")
	}
}
