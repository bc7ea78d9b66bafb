package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"drift/internal/types"
)

var bucketProfiles = []byte("profiles")

type bboltStore struct {
	db       *bolt.DB
	profiles ProfileStore
}

func NewBboltStore(path string) (Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := initBboltSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &bboltStore{
		db:       db,
		profiles: &bboltProfileStore{db: db, now: time.Now},
	}, nil
}

func (s *bboltStore) Profiles() ProfileStore {
	return s.profiles
}

func (s *bboltStore) Backend() string {
	return BackendBbolt
}

func (s *bboltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initBboltSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketProfiles)
		return err
	})
}

type bboltProfileStore struct {
	db  *bolt.DB
	mu  sync.Mutex
	now func() time.Time
}

func (s *bboltProfileStore) List(ctx context.Context) ([]types.ConnectionProfile, error) {
	out := make([]types.ConnectionProfile, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var profile types.ConnectionProfile
			if err := json.Unmarshal(v, &profile); err != nil {
				return err
			}
			out = append(out, profile)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *bboltProfileStore) Get(ctx context.Context, id string) (types.ConnectionProfile, bool, error) {
	var (
		out types.ConnectionProfile
		ok  bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(id))
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return types.ConnectionProfile{}, false, err
	}
	return out, ok, nil
}

func (s *bboltProfileStore) Add(ctx context.Context, profile types.ConnectionProfile) (types.ConnectionProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateProfile(profile); err != nil {
		return types.ConnectionProfile{}, err
	}
	now := s.now().UTC()
	profile = profile.Clone()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		if existing := b.Get([]byte(profile.ID)); len(existing) > 0 {
			return ErrProfileExists
		}
		raw, err := json.Marshal(profile)
		if err != nil {
			return err
		}
		return b.Put([]byte(profile.ID), raw)
	})
	if err != nil {
		return types.ConnectionProfile{}, err
	}
	return profile, nil
}

func (s *bboltProfileStore) Update(ctx context.Context, profile types.ConnectionProfile) (types.ConnectionProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateProfile(profile); err != nil {
		return types.ConnectionProfile{}, err
	}
	var updated types.ConnectionProfile
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		raw := b.Get([]byte(profile.ID))
		if len(raw) == 0 {
			return ErrProfileNotFound
		}
		var existing types.ConnectionProfile
		if err := json.Unmarshal(raw, &existing); err != nil {
			return err
		}
		updated = profile.Clone()
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = s.now().UTC()
		if updated.RecentProjects == nil {
			updated.RecentProjects = append([]string(nil), existing.RecentProjects...)
		}
		if updated.Bookmarks == nil {
			updated.Bookmarks = append([]string(nil), existing.Bookmarks...)
		}
		encoded, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		return b.Put([]byte(updated.ID), encoded)
	})
	if err != nil {
		return types.ConnectionProfile{}, err
	}
	return updated, nil
}

func (s *bboltProfileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		if existing := b.Get([]byte(id)); len(existing) == 0 {
			return ErrProfileNotFound
		}
		return b.Delete([]byte(id))
	})
}

func (s *bboltProfileStore) TouchRecentProject(ctx context.Context, id, projectRoot string) error {
	return s.mutate(id, func(profile *types.ConnectionProfile) error {
		if strings.TrimSpace(projectRoot) == "" {
			return errors.New("project root is required")
		}
		profile.RecentProjects = touchRecent(profile.RecentProjects, projectRoot)
		return nil
	})
}

func (s *bboltProfileStore) AddBookmark(ctx context.Context, id, path string) error {
	return s.mutate(id, func(profile *types.ConnectionProfile) error {
		if strings.TrimSpace(path) == "" {
			return errors.New("bookmark path is required")
		}
		for _, existing := range profile.Bookmarks {
			if existing == path {
				return nil
			}
		}
		profile.Bookmarks = append(profile.Bookmarks, path)
		sort.Strings(profile.Bookmarks)
		return nil
	})
}

func (s *bboltProfileStore) RemoveBookmark(ctx context.Context, id, path string) error {
	return s.mutate(id, func(profile *types.ConnectionProfile) error {
		filtered := profile.Bookmarks[:0]
		for _, existing := range profile.Bookmarks {
			if existing != path {
				filtered = append(filtered, existing)
			}
		}
		profile.Bookmarks = filtered
		return nil
	})
}

func (s *bboltProfileStore) mutate(id string, apply func(profile *types.ConnectionProfile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		raw := b.Get([]byte(id))
		if len(raw) == 0 {
			return ErrProfileNotFound
		}
		var profile types.ConnectionProfile
		if err := json.Unmarshal(raw, &profile); err != nil {
			return err
		}
		if err := apply(&profile); err != nil {
			return err
		}
		profile.UpdatedAt = s.now().UTC()
		encoded, err := json.Marshal(profile)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), encoded)
	})
}
