package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

type sessionsFile struct {
	Sessions []types.StoredSessionRecord `yaml:"sessions"`
}

// FileStore keeps session records in a yaml file. Every write rewrites the whole file.
type FileStore struct {
	lock sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) List(_ context.Context) ([]types.StoredSessionRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	records, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	sortRecords(records)
	return records, nil
}

func (s *FileStore) Upsert(_ context.Context, record types.StoredSessionRecord) error {
	if record.RoomID == "" {
		return ErrRoomIDRequired
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	records, err := s.loadLocked()
	if err != nil {
		return err
	}
	replaced := false
	for i := range records {
		if records[i].RoomID == record.RoomID {
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}
	return s.saveLocked(records)
}

func (s *FileStore) Remove(_ context.Context, roomID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	records, err := s.loadLocked()
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, r := range records {
		if r.RoomID != roomID {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.saveLocked(kept)
}

func (s *FileStore) loadLocked() ([]types.StoredSessionRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "could not read session file")
	}

	var f sessionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "could not parse session file %s", s.path)
	}
	return f.Sessions, nil
}

func (s *FileStore) saveLocked(records []types.StoredSessionRecord) error {
	data, err := yaml.Marshal(&sessionsFile{Sessions: records})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "could not create session directory")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "could not write session file")
	}
	return os.Rename(tmp, s.path)
}
