package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/pricing"
)

// New returns the Store implementation named by provider.
func New(provider string, local LocalConfig, r2 R2Config, logger *slog.Logger) (Store, error) {
	switch provider {
	case ProviderLocal, "":
		s, err := NewLocalStorage(local, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ProviderR2:
		s, err := NewR2Storage(r2, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", provider)
	}
}

// Revision is an archived tier document.
type Revision struct {
	Version     string
	Key         string
	PublishedAt time.Time
	Active      bool
}

// LoadTierTable reads and validates the tier document at key. The error
// matches ErrNotFound when nothing has been published.
func LoadTierTable(ctx context.Context, store Store, key string) (*pricing.TierTable, error) {
	obj, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	table, err := pricing.ParseTierDocument(obj.Data)
	if err != nil {
		return nil, fmt.Errorf("tier document %s: %w", key, err)
	}
	return table, nil
}

// PublishTierTable archives table under its version and then makes it the
// active document at key. Republishing a version already in the archive
// leaves the archived copy untouched.
func PublishTierTable(ctx context.Context, store Store, key string, table *pricing.TierTable) error {
	data, err := pricing.MarshalTierDocument(table)
	if err != nil {
		return err
	}

	archived := historyKey(key, table.Version())
	err = store.Put(ctx, archived, data, PutOptions{ContentType: yamlContentType})
	if err != nil && !errors.Is(err, ErrKeyExists) {
		return fmt.Errorf("archive version %s: %w", table.Version(), err)
	}

	return store.Put(ctx, key, data, PutOptions{ContentType: yamlContentType, Overwrite: true})
}

// ListTierRevisions returns the archived versions of the document at key,
// newest first. The revision matching the active document is flagged.
func ListTierRevisions(ctx context.Context, store Store, key string) ([]Revision, error) {
	objects, err := store.List(ctx, historyPrefix(key))
	if err != nil {
		return nil, err
	}

	active := ""
	if table, err := LoadTierTable(ctx, store, key); err == nil {
		active = table.Version()
	} else if !IsNotFound(err) {
		return nil, err
	}

	revisions := make([]Revision, 0, len(objects))
	for _, obj := range objects {
		version, ok := versionFromKey(key, obj.Key)
		if !ok {
			continue
		}
		revisions = append(revisions, Revision{
			Version:     version,
			Key:         obj.Key,
			PublishedAt: obj.LastModified,
			Active:      version == active,
		})
	}
	slices.SortStableFunc(revisions, func(a, b Revision) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	return revisions, nil
}

// RestoreTierRevision makes an archived version the active document again.
func RestoreTierRevision(ctx context.Context, store Store, key, version string) (*pricing.TierTable, error) {
	table, err := LoadTierTable(ctx, store, historyKey(key, version))
	if err != nil {
		return nil, err
	}
	if table.Version() != version {
		return nil, fmt.Errorf("archived document %s has version %s", version, table.Version())
	}
	if err := PublishTierTable(ctx, store, key, table); err != nil {
		return nil, err
	}
	return table, nil
}

// PruneTierRevisions deletes all but the newest keep revisions. The active
// revision is never deleted. Returns the versions removed.
func PruneTierRevisions(ctx context.Context, store Store, key string, keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must not be negative, got %d", keep)
	}
	revisions, err := ListTierRevisions(ctx, store, key)
	if err != nil {
		return nil, err
	}

	var removed []string
	for i, rev := range revisions {
		if i < keep || rev.Active {
			continue
		}
		if err := store.Delete(ctx, rev.Key); err != nil {
			return removed, err
		}
		removed = append(removed, rev.Version)
	}
	return removed, nil
}

// historyPrefix puts the archive next to the document:
// "pricing/tiers.yaml" archives under "pricing/tiers.history/".
func historyPrefix(key string) string {
	base := strings.TrimSuffix(key, path.Ext(key))
	return base + ".history/"
}

func historyKey(key, version string) string {
	ext := path.Ext(key)
	if ext == "" {
		ext = ".yaml"
	}
	return historyPrefix(key) + version + ext
}

func versionFromKey(key, objectKey string) (string, bool) {
	name, ok := strings.CutPrefix(objectKey, historyPrefix(key))
	if !ok || strings.Contains(name, "/") {
		return "", false
	}
	version := strings.TrimSuffix(name, path.Ext(name))
	return version, version != ""
}
