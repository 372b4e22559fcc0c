package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"studyrag/internal/helper"
	"studyrag/internal/models"
)

const (
	metaFile          = "session.yaml"
	idPrefix          = "session_"
	suffixLen         = 8
	maxCreateAttempts = 5

	// directories without metadata are ingestions in flight until this old
	abandonedAfter = time.Hour
)

var idRe = regexp.MustCompile(`^session_\d+_[0-9a-f]{8}$`)

// ValidID reports whether id has the shape of a generated session id
func ValidID(id string) bool {
	return idRe.MatchString(id)
}

func newID(now time.Time) (string, error) {
	suffix, err := helper.RandomSuffix(suffixLen)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d_%s", idPrefix, now.Unix(), suffix), nil
}

// FileStore keeps one directory per session under root. A session becomes
// visible only once its metadata file has been committed.
type FileStore struct {
	root string
	ttl  time.Duration
	now  func() time.Time
}

func NewFileStore(root string, ttl time.Duration) (*FileStore, error) {
	if err := helper.CreateFolder(root); err != nil {
		return nil, err
	}
	return &FileStore{root: root, ttl: ttl, now: time.Now}, nil
}

func (s *FileStore) Root() string { return s.root }

func (s *FileStore) dir(id string) string {
	return filepath.Join(s.root, id)
}

// Create reserves a fresh id and its storage directory
func (s *FileStore) Create(ctx context.Context) (*models.Session, error) {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := s.now()
		id, err := newID(now)
		if err != nil {
			return nil, err
		}
		dir := s.dir(id)
		if err := os.Mkdir(dir, 0o755); err != nil {
			if os.IsExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to create session dir: %w", err)
		}
		return &models.Session{ID: id, Location: dir, CreatedAt: now}, nil
	}
	return nil, fmt.Errorf("failed to allocate a unique session id after %d attempts", maxCreateAttempts)
}

// Commit persists the session metadata, making the session visible
func (s *FileStore) Commit(ctx context.Context, sess *models.Session) error {
	if !ValidID(sess.ID) {
		return fmt.Errorf("%w: malformed session id %q", models.ErrInvalidInput, sess.ID)
	}
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// write then rename so readers never see a partial file
	tmp := filepath.Join(s.dir(sess.ID), metaFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session metadata: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir(sess.ID), metaFile)); err != nil {
		return fmt.Errorf("failed to commit session metadata: %w", err)
	}
	return nil
}

// Get returns a committed, unexpired session or models.ErrSessionNotFound
func (s *FileStore) Get(ctx context.Context, id string) (*models.Session, error) {
	if !ValidID(id) {
		return nil, models.ErrSessionNotFound
	}
	sess, err := s.readMeta(id)
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.now(), s.ttl) {
		return nil, models.ErrSessionNotFound
	}
	return sess, nil
}

func (s *FileStore) readMeta(id string) (*models.Session, error) {
	data, err := os.ReadFile(filepath.Join(s.dir(id), metaFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session metadata: %w", err)
	}
	var sess models.Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session metadata: %w", err)
	}
	sess.ID = id
	sess.Location = s.dir(id)
	return &sess, nil
}

func (s *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if errors.Is(err, models.ErrSessionNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *FileStore) LocationOf(ctx context.Context, id string) (string, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return sess.Location, nil
}

// Delete removes the session directory. Deleting an unknown session is not an error.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return models.ErrSessionNotFound
	}
	if err := os.RemoveAll(s.dir(id)); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// Touch refreshes the activity time of a session directory. Ingestions call
// it between long steps so an uncommitted directory is not taken as abandoned.
func (s *FileStore) Touch(ctx context.Context, id string) error {
	if !ValidID(id) {
		return models.ErrSessionNotFound
	}
	now := s.now()
	if err := os.Chtimes(s.dir(id), now, now); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.ErrSessionNotFound
		}
		return fmt.Errorf("failed to touch session %s: %w", id, err)
	}
	return nil
}

// lastActivity is the newest modification time of dir and its direct entries
func lastActivity(dir string) (time.Time, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return time.Time{}, err
	}
	latest := info.ModTime()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return latest, nil
	}
	for _, entry := range entries {
		if fi, err := entry.Info(); err == nil && fi.ModTime().After(latest) {
			latest = fi.ModTime()
		}
	}
	return latest, nil
}

// Sweep deletes expired sessions and directories left behind by ingestions
// that never committed.
func (s *FileStore) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	return s.sweepDirs(ctx, now, func(id string, meta *models.Session) (bool, error) {
		return meta.Expired(now, s.ttl), nil
	})
}

// sweepDirs walks the session directories. expired is only asked about
// committed sessions; uncommitted ones go once they are abandoned.
func (s *FileStore) sweepDirs(ctx context.Context, now time.Time, expired func(id string, meta *models.Session) (bool, error)) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var removed []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		id := entry.Name()
		if !entry.IsDir() || !ValidID(id) {
			continue
		}

		var remove bool
		meta, err := s.readMeta(id)
		switch {
		case errors.Is(err, models.ErrSessionNotFound):
			active, err := lastActivity(s.dir(id))
			if err != nil {
				continue
			}
			remove = now.Sub(active) > abandonedAfter
		case err != nil:
			log.Warn().Err(err).Str("session_id", id).Msg("Skipping unreadable session")
			continue
		default:
			remove, err = expired(id, meta)
			if err != nil {
				return removed, err
			}
		}

		if !remove {
			continue
		}
		if err := os.RemoveAll(s.dir(id)); err != nil {
			log.Error().Err(err).Str("session_id", id).Msg("Failed to remove session")
			continue
		}
		removed = append(removed, id)
	}
	return removed, nil
}
