package store

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"drift/internal/types"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
)

const profileSchemaVersion = 1

// maxRecentProjects bounds the per-profile recents list; the oldest entry
// falls off first.
const maxRecentProjects = 10

type ProfileStore interface {
	List(ctx context.Context) ([]types.ConnectionProfile, error)
	Get(ctx context.Context, id string) (types.ConnectionProfile, bool, error)
	Add(ctx context.Context, profile types.ConnectionProfile) (types.ConnectionProfile, error)
	Update(ctx context.Context, profile types.ConnectionProfile) (types.ConnectionProfile, error)
	Delete(ctx context.Context, id string) error
	TouchRecentProject(ctx context.Context, id, projectRoot string) error
	AddBookmark(ctx context.Context, id, path string) error
	RemoveBookmark(ctx context.Context, id, path string) error
}

type FileProfileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

type profileFile struct {
	Version  int                       `json:"version"`
	Profiles []types.ConnectionProfile `json:"profiles"`
}

func NewFileProfileStore(path string) *FileProfileStore {
	return &FileProfileStore{path: path, now: time.Now}
}

func (s *FileProfileStore) List(ctx context.Context) ([]types.ConnectionProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return []types.ConnectionProfile{}, nil
		}
		return nil, err
	}
	out := make([]types.ConnectionProfile, 0, len(file.Profiles))
	for _, profile := range file.Profiles {
		out = append(out, profile.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *FileProfileStore) Get(ctx context.Context, id string) (types.ConnectionProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return types.ConnectionProfile{}, false, nil
		}
		return types.ConnectionProfile{}, false, err
	}
	for _, profile := range file.Profiles {
		if profile.ID == id {
			return profile.Clone(), true, nil
		}
	}
	return types.ConnectionProfile{}, false, nil
}

func (s *FileProfileStore) Add(ctx context.Context, profile types.ConnectionProfile) (types.ConnectionProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateProfile(profile); err != nil {
		return types.ConnectionProfile{}, err
	}
	file, err := s.load()
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return types.ConnectionProfile{}, err
	}
	if file == nil {
		file = newProfileFile()
	}
	for _, existing := range file.Profiles {
		if existing.ID == profile.ID {
			return types.ConnectionProfile{}, ErrProfileExists
		}
	}
	now := s.now().UTC()
	profile = profile.Clone()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	file.Profiles = append(file.Profiles, profile)
	if err := s.save(file); err != nil {
		return types.ConnectionProfile{}, err
	}
	return profile.Clone(), nil
}

func (s *FileProfileStore) Update(ctx context.Context, profile types.ConnectionProfile) (types.ConnectionProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateProfile(profile); err != nil {
		return types.ConnectionProfile{}, err
	}
	file, err := s.load()
	if err != nil {
		return types.ConnectionProfile{}, err
	}
	for i, existing := range file.Profiles {
		if existing.ID != profile.ID {
			continue
		}
		updated := profile.Clone()
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = s.now().UTC()
		if updated.RecentProjects == nil {
			updated.RecentProjects = append([]string(nil), existing.RecentProjects...)
		}
		if updated.Bookmarks == nil {
			updated.Bookmarks = append([]string(nil), existing.Bookmarks...)
		}
		file.Profiles[i] = updated
		if err := s.save(file); err != nil {
			return types.ConnectionProfile{}, err
		}
		return updated.Clone(), nil
	}
	return types.ConnectionProfile{}, ErrProfileNotFound
}

func (s *FileProfileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	filtered := file.Profiles[:0]
	found := false
	for _, profile := range file.Profiles {
		if profile.ID == id {
			found = true
			continue
		}
		filtered = append(filtered, profile)
	}
	file.Profiles = filtered
	if !found {
		return ErrProfileNotFound
	}
	return s.save(file)
}

func (s *FileProfileStore) TouchRecentProject(ctx context.Context, id, projectRoot string) error {
	return s.mutate(id, func(profile *types.ConnectionProfile) error {
		if strings.TrimSpace(projectRoot) == "" {
			return errors.New("project root is required")
		}
		profile.RecentProjects = touchRecent(profile.RecentProjects, projectRoot)
		return nil
	})
}

func (s *FileProfileStore) AddBookmark(ctx context.Context, id, path string) error {
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

func (s *FileProfileStore) RemoveBookmark(ctx context.Context, id, path string) error {
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

func (s *FileProfileStore) mutate(id string, apply func(profile *types.ConnectionProfile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	for i := range file.Profiles {
		if file.Profiles[i].ID != id {
			continue
		}
		if err := apply(&file.Profiles[i]); err != nil {
			return err
		}
		file.Profiles[i].UpdatedAt = s.now().UTC()
		return s.save(file)
	}
	return ErrProfileNotFound
}

func (s *FileProfileStore) load() (*profileFile, error) {
	file := newProfileFile()
	if err := readJSONFile(s.path, file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	if file.Version == 0 {
		file.Version = profileSchemaVersion
	}
	return file, nil
}

func (s *FileProfileStore) save(file *profileFile) error {
	file.Version = profileSchemaVersion
	return writeJSONFileAtomic(s.path, file)
}

func newProfileFile() *profileFile {
	return &profileFile{
		Version:  profileSchemaVersion,
		Profiles: []types.ConnectionProfile{},
	}
}

func validateProfile(profile types.ConnectionProfile) error {
	if strings.TrimSpace(profile.ID) == "" {
		return errors.New("profile requires id")
	}
	if strings.TrimSpace(profile.Name) == "" {
		return errors.New("profile requires name")
	}
	if strings.TrimSpace(profile.Host) == "" {
		return errors.New("profile requires host")
	}
	if profile.Port <= 0 || profile.Port > 65535 {
		return errors.New("profile requires a valid port")
	}
	switch profile.AuthMethod {
	case types.AuthMethodKey:
		if strings.TrimSpace(profile.KeyPath) == "" {
			return errors.New("key auth requires key_path")
		}
	case types.AuthMethodPassword:
	default:
		return errors.New("unsupported auth method: " + string(profile.AuthMethod))
	}
	return nil
}

// touchRecent moves root to the front, dropping duplicates and truncating to
// the recents cap.
func touchRecent(recents []string, root string) []string {
	out := make([]string, 0, len(recents)+1)
	out = append(out, root)
	for _, existing := range recents {
		if existing != root {
			out = append(out, existing)
		}
	}
	if len(out) > maxRecentProjects {
		out = out[:maxRecentProjects]
	}
	return out
}
