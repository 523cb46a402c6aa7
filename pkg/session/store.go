package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// PairingRecord is the persistent part of a session.
type PairingRecord struct {
	// Serial identifies the pump. Empty is allowed for a single-pump store.
	Serial string `json:"serial"`

	Kind        HandshakeKind `json:"kind"`
	PairingCode string        `json:"pairingCode"`

	AppInstanceID uint16 `json:"appInstanceId"`

	// DerivedSecret and ServerNonce are set for JPAKE pairings.
	DerivedSecret []byte `json:"derivedSecret,omitempty"`
	ServerNonce   []byte `json:"serverNonce,omitempty"`

	PairedAt time.Time `json:"pairedAt"`
}

// Validate checks that the record can restore a session.
func (r *PairingRecord) Validate() error {
	if r == nil {
		return ErrInvalidRecord
	}
	code, kind, err := ParsePairingCode(r.PairingCode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if !r.Kind.IsValid() || kind != r.Kind || code != r.PairingCode {
		return fmt.Errorf("%w: kind %s does not match code", ErrInvalidRecord, r.Kind)
	}
	if r.Kind == HandshakeJPAKE && len(r.DerivedSecret) == 0 {
		return fmt.Errorf("%w: JPAKE record without derived secret", ErrInvalidRecord)
	}
	return nil
}

// Clone returns a deep copy.
func (r *PairingRecord) Clone() *PairingRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.DerivedSecret = append([]byte(nil), r.DerivedSecret...)
	c.ServerNonce = append([]byte(nil), r.ServerNonce...)
	return &c
}

// PairingStore persists pairing records keyed by pump serial.
//
// All methods must be safe for concurrent use.
type PairingStore interface {
	// Load returns the record for serial, or ErrNotPaired.
	Load(serial string) (*PairingRecord, error)

	// Save stores or replaces a record.
	Save(rec *PairingRecord) error

	// Delete removes the record for serial. Deleting a missing record is not
	// an error.
	Delete(serial string) error

	// List returns all records ordered by serial.
	List() ([]*PairingRecord, error)
}

// MemoryStore is an in-memory PairingStore. Data is lost when the process
// exits.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*PairingRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*PairingRecord)}
}

// Load implements PairingStore.
func (m *MemoryStore) Load(serial string) (*PairingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[serial]
	if !ok {
		return nil, ErrNotPaired
	}
	return rec.Clone(), nil
}

// Save implements PairingStore.
func (m *MemoryStore) Save(rec *PairingRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Serial] = rec.Clone()
	return nil
}

// Delete implements PairingStore.
func (m *MemoryStore) Delete(serial string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, serial)
	return nil
}

// List implements PairingStore.
func (m *MemoryStore) List() ([]*PairingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedClones(m.records), nil
}

func sortedClones(records map[string]*PairingRecord) []*PairingRecord {
	out := make([]*PairingRecord, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out
}

// FileStore is a PairingStore backed by one JSON file. Every Save and Delete
// rewrites the file through a temporary file and rename.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// fileFormat is the on-disk layout.
type fileFormat struct {
	Version int              `json:"version"`
	Records []*PairingRecord `json:"records"`
}

const fileFormatVersion = 1

// NewFileStore creates a store at path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) read() (map[string]*PairingRecord, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]*PairingRecord), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", f.path, err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", f.path, err)
	}
	if ff.Version != fileFormatVersion {
		return nil, fmt.Errorf("session: %s has unsupported version %d", f.path, ff.Version)
	}

	records := make(map[string]*PairingRecord, len(ff.Records))
	for _, r := range ff.Records {
		if r == nil {
			continue
		}
		records[r.Serial] = r
	}
	return records, nil
}

func (f *FileStore) write(records map[string]*PairingRecord) error {
	ff := fileFormat{Version: fileFormatVersion, Records: sortedClones(records)}
	data, err := json.MarshalIndent(&ff, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".pairing-*")
	if err != nil {
		return fmt.Errorf("session: write %s: %w", f.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: write %s: %w", f.path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", f.path, err)
	}
	return os.Rename(tmp.Name(), f.path)
}

// Load implements PairingStore.
func (f *FileStore) Load(serial string) (*PairingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.read()
	if err != nil {
		return nil, err
	}
	rec, ok := records[serial]
	if !ok {
		return nil, ErrNotPaired
	}
	return rec, nil
}

// Save implements PairingStore.
func (f *FileStore) Save(rec *PairingRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.read()
	if err != nil {
		return err
	}
	records[rec.Serial] = rec.Clone()
	return f.write(records)
}

// Delete implements PairingStore.
func (f *FileStore) Delete(serial string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := records[serial]; !ok {
		return nil
	}
	delete(records, serial)
	return f.write(records)
}

// List implements PairingStore.
func (f *FileStore) List() ([]*PairingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.read()
	if err != nil {
		return nil, err
	}
	return sortedClones(records), nil
}
