// Package store persists connection profiles across runs. Two backends share
// one interface: a JSON file for transparency and a bbolt database for
// transactional updates.
package store

import (
	"errors"
	"strings"
)

const (
	BackendFile  = "file"
	BackendBbolt = "bbolt"
)

type Store interface {
	Profiles() ProfileStore
	Backend() string
	Close() error
}

type Paths struct {
	ProfilesPath string
	DBPath       string
}

type fileStore struct {
	profiles ProfileStore
}

func NewFileStore(paths Paths) Store {
	return &fileStore{profiles: NewFileProfileStore(paths.ProfilesPath)}
}

func (s *fileStore) Profiles() ProfileStore {
	return s.profiles
}

func (s *fileStore) Backend() string {
	return BackendFile
}

func (s *fileStore) Close() error {
	return nil
}

func Open(paths Paths, backend string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		if strings.TrimSpace(paths.ProfilesPath) == "" {
			return nil, errors.New("profiles path is required for file store")
		}
		return NewFileStore(paths), nil
	case BackendBbolt:
		if strings.TrimSpace(paths.DBPath) == "" {
			return nil, errors.New("db path is required for bbolt store")
		}
		return NewBboltStore(paths.DBPath)
	default:
		return nil, errors.New("unsupported store backend: " + backend)
	}
}
