package identity

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var ErrIdentityNotFound = errors.New("no persisted identity")

// Store persists the participant identity of this client.
type Store interface {
	Load() (string, error)
	Save(identity string) error
}

type MemoryStore struct {
	lock     sync.Mutex
	identity string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.identity == "" {
		return "", ErrIdentityNotFound
	}
	return s.identity, nil
}

func (s *MemoryStore) Save(identity string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.identity = identity
	return nil
}

type identityFile struct {
	Identity string `yaml:"identity"`
}

// FileStore keeps the identity in a small yaml file, by default under the user's home directory.
type FileStore struct {
	lock sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", ErrIdentityNotFound
	} else if err != nil {
		return "", err
	}

	var f identityFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", err
	}
	if f.Identity == "" {
		return "", ErrIdentityNotFound
	}
	return f.Identity, nil
}

func (s *FileStore) Save(identity string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := yaml.Marshal(&identityFile{Identity: identity})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	// replaced atomically
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
