// Package presetstore persists scene presets outside the process.
//
// A Store holds the serializable form of presets (studio.PresetData) keyed
// by name. Three backends are provided:
//   - MemoryStore: in-process, for tests and ephemeral sessions
//   - FileStore: a single JSON document on disk, for the CLI
//   - RedisStore: a Redis hash, for studios sharing presets across hosts
//
// Presets hold no pixels; drawables are resolved again on Restore.
package presetstore

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"

	"github.com/thesyncim/studio"
)

// Store is the interface for preset storage backends.
type Store interface {
	// Load returns every stored preset. An empty store returns an empty map.
	Load(ctx context.Context) (map[string]studio.PresetData, error)

	// Save stores one preset, replacing any preset of the same name.
	Save(ctx context.Context, name string, data studio.PresetData) error

	// Delete removes a preset. Deleting a missing preset is not an error.
	Delete(ctx context.Context, name string) error

	// Close releases the backend.
	Close() error
}

// Sync makes store hold exactly the presets of book: every preset is saved
// and stored names the book no longer has are deleted. Every step is
// attempted even when an earlier one fails.
func Sync(ctx context.Context, store Store, book *studio.PresetBook) error {
	stored, err := store.Load(ctx)
	if err != nil {
		return studio.WrapError(studio.ErrCodeResourceUnavailable, err, "load presets")
	}
	current := book.Export()

	var result *multierror.Error
	for name, data := range current {
		if err := store.Save(ctx, name, data); err != nil {
			result = multierror.Append(result, studio.WrapError(studio.ErrCodeResourceUnavailable, err, "save preset %q", name))
		}
	}
	for name := range stored {
		if _, ok := current[name]; ok {
			continue
		}
		if err := store.Delete(ctx, name); err != nil {
			result = multierror.Append(result, studio.WrapError(studio.ErrCodeResourceUnavailable, err, "delete preset %q", name))
			continue
		}
		logger().Debug("stale preset deleted", "name", name)
	}
	return result.ErrorOrNil()
}

// Restore imports every stored preset into book. resolve supplies drawables
// for the imported elements and may be nil.
func Restore(ctx context.Context, store Store, book *studio.PresetBook, resolve studio.DrawableResolver) (int, error) {
	data, err := store.Load(ctx)
	if err != nil {
		return 0, studio.WrapError(studio.ErrCodeResourceUnavailable, err, "load presets")
	}
	book.Import(data, resolve)
	logger().Debug("presets restored", "count", len(data))
	return len(data), nil
}

func logger() *log.Logger {
	return studio.Logger().WithPrefix("presetstore")
}

func clonePreset(d studio.PresetData) studio.PresetData {
	c := studio.PresetData{Shortcut: d.Shortcut, Elements: make([]studio.PresetElementData, len(d.Elements))}
	for i, e := range d.Elements {
		if e.Filters != nil {
			f := *e.Filters
			e.Filters = &f
		}
		c.Elements[i] = e
	}
	return c
}
