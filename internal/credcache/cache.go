// Package credcache keeps the most recent successful login on the local
// device so the office app can sign in while the hosted backend is
// unreachable. Entries are stored in the clear; the trust boundary is the
// device itself.
package credcache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lawdesk/lawdesk/internal/identity"
)

const (
	credentialsKey = "lastUserCredentials"
	identityKey    = "lastUser"
	loggedOutKey   = "loggedOut"
)

// Credentials is the cached mobile/password pair from the last successful
// online login on this device.
type Credentials struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

// Store persists the offline-login material under fixed keys.
type Store interface {
	SaveCredentials(creds Credentials) error
	LoadCredentials() (Credentials, bool, error)
	SaveIdentity(id identity.Identity) error
	LoadIdentity() (identity.Identity, bool, error)
	SetLoggedOut(loggedOut bool) error
	LoggedOut() bool
}

// FileStore keeps each entry as a JSON file in a local directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the cache directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(key), data, 0o600)
}

// read loads a key into v. A missing entry reports (false, nil); an
// unparseable entry is purged and treated as absent rather than surfaced.
func (s *FileStore) read(key string, v any) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		_ = os.Remove(s.path(key))
		return false, nil
	}
	return true, nil
}

// SaveCredentials overwrites the cached credential pair. Called only after a
// successful online login.
func (s *FileStore) SaveCredentials(creds Credentials) error {
	return s.write(credentialsKey, creds)
}

// LoadCredentials returns the cached pair if present.
func (s *FileStore) LoadCredentials() (Credentials, bool, error) {
	var creds Credentials
	ok, err := s.read(credentialsKey, &creds)
	if err != nil || !ok {
		return Credentials{}, false, err
	}
	if creds.Mobile == "" || creds.Password == "" {
		return Credentials{}, false, nil
	}
	return creds, true, nil
}

// SaveIdentity snapshots the authenticated identity for offline session
// reconstruction.
func (s *FileStore) SaveIdentity(id identity.Identity) error {
	return s.write(identityKey, id)
}

// LoadIdentity returns the snapshotted identity if present.
func (s *FileStore) LoadIdentity() (identity.Identity, bool, error) {
	var id identity.Identity
	ok, err := s.read(identityKey, &id)
	if err != nil || !ok {
		return identity.Identity{}, false, err
	}
	if id.ID == "" {
		return identity.Identity{}, false, nil
	}
	return id, true, nil
}

// SetLoggedOut flips the logged-out marker. Logout never erases the cached
// credentials, only this marker, so offline re-login stays possible.
func (s *FileStore) SetLoggedOut(loggedOut bool) error {
	if !loggedOut {
		err := os.Remove(s.path(loggedOutKey))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return s.write(loggedOutKey, true)
}

// LoggedOut reports whether the marker is set.
func (s *FileStore) LoggedOut() bool {
	_, err := os.Stat(s.path(loggedOutKey))
	return err == nil
}
