package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/biz/repo"
)

// VaultConfig contains media vault configuration
type VaultConfig struct {
	Dir           string
	MaxAge        time.Duration // entries older than this are swept
	SweepInterval time.Duration
}

// DefaultVaultConfig returns default vault configuration rooted at dir
func DefaultVaultConfig(dir string) VaultConfig {
	return VaultConfig{
		Dir:           dir,
		MaxAge:        2 * time.Hour,
		SweepInterval: 2 * time.Hour,
	}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// MediaVault saves view-once media to disk and indexes it in memory.
// It exclusively owns its directory.
type MediaVault struct {
	mu      sync.Mutex
	config  VaultConfig
	clock   domain.Clock
	entries map[string]*domain.EphemeralMedia
}

// NewMediaVault creates a new media vault
func NewMediaVault(config VaultConfig, clock domain.Clock) *MediaVault {
	return &MediaVault{
		config:  config,
		clock:   clock,
		entries: make(map[string]*domain.EphemeralMedia),
	}
}

// Capture downloads and saves the view-once payload of msg.
// It returns nil without error when msg carries no view-once image or video.
func (v *MediaVault) Capture(ctx context.Context, msg *domain.MessageReceived, fetcher repo.MediaFetcher) (*domain.EphemeralMedia, error) {
	if msg == nil || msg.ViewOnce == nil {
		return nil, nil
	}
	kind := msg.ViewOnce.Kind
	if kind != domain.MediaImage && kind != domain.MediaVideo {
		return nil, nil
	}

	data, err := fetcher.FetchMedia(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("failed to fetch media: empty payload")
	}

	if err := os.MkdirAll(v.config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault dir: %w", err)
	}

	name := "viewonce_" + unsafeFileChars.ReplaceAllString(msg.ID, "_") + kind.Extension()
	path := filepath.Join(v.config.Dir, name)
	if err := writeFileAtomic(path, data); err != nil {
		return nil, err
	}

	media := &domain.EphemeralMedia{
		ID:         msg.ID,
		Kind:       kind,
		FilePath:   path,
		Sender:     msg.Sender,
		Chat:       msg.Chat,
		Caption:    msg.ViewOnce.Caption,
		CapturedAt: v.clock.Now(),
	}

	v.mu.Lock()
	v.entries[media.ID] = media
	v.mu.Unlock()

	out := *media
	return &out, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write media: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write media: %w", err)
	}
	return nil
}

// List returns all entries, newest first
func (v *MediaVault) List() []domain.EphemeralMedia {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]domain.EphemeralMedia, 0, len(v.entries))
	for _, m := range v.entries {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CapturedAt.Equal(out[j].CapturedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CapturedAt.After(out[j].CapturedAt)
	})
	return out
}

// Get returns the entry with the given id
func (v *MediaVault) Get(id string) (domain.EphemeralMedia, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, ok := v.entries[id]
	if !ok {
		return domain.EphemeralMedia{}, false
	}
	return *m, true
}

// Discard removes one entry and its file
func (v *MediaVault) Discard(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, ok := v.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := removeIfExists(m.FilePath); err != nil {
		return err
	}
	delete(v.entries, id)
	return nil
}

// Sweep removes every entry older than maxAge together with its file.
// Entries whose file has disappeared are dropped as well.
func (v *MediaVault) Sweep(maxAge time.Duration) ([]domain.EphemeralMedia, error) {
	now := v.clock.Now()

	v.mu.Lock()
	defer v.mu.Unlock()

	var removed []domain.EphemeralMedia
	var errs []error
	for id, m := range v.entries {
		expired := m.Age(now) > maxAge
		if !expired {
			if _, err := os.Stat(m.FilePath); err == nil || !errors.Is(err, fs.ErrNotExist) {
				continue
			}
		}
		if err := removeIfExists(m.FilePath); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(v.entries, id)
		removed = append(removed, *m)
	}
	return removed, errors.Join(errs...)
}

// Len returns the number of stored entries
func (v *MediaVault) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// Dir returns the vault directory
func (v *MediaVault) Dir() string {
	return v.config.Dir
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove media: %w", err)
	}
	return nil
}
