package presetstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/studio"
)

func samplePreset(shortcut string) studio.PresetData {
	return studio.PresetData{
		Shortcut: shortcut,
		Elements: []studio.PresetElementData{
			{ID: "cam", Scale: 0.5, Position: studio.Point{X: 10, Y: 20}},
			{ID: "logo", Scale: 1, Position: studio.Point{X: 600, Y: 300}, Filters: &studio.Filters{Brightness: 120, Contrast: 100, Saturation: 100}},
		},
	}
}

func runStoreTests(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Save(ctx, "interview", samplePreset("ctrl+1")))
	require.NoError(t, store.Save(ctx, "wide", samplePreset("ctrl+2")))
	require.NoError(t, store.Save(ctx, "wide", samplePreset("ctrl+3")))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, samplePreset("ctrl+1"), got["interview"])
	assert.Equal(t, "ctrl+3", got["wide"].Shortcut, "saving replaces")

	require.NoError(t, store.Delete(ctx, "interview"))
	require.NoError(t, store.Delete(ctx, "interview"))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	runStoreTests(t, store)

	data := samplePreset("ctrl+1")
	require.NoError(t, store.Save(context.Background(), "x", data))
	data.Elements[1].Filters.Brightness = 0
	got, _ := store.Load(context.Background())
	assert.Equal(t, 120.0, got["x"].Elements[1].Filters.Brightness, "saved presets are copies")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "presets.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())
	runStoreTests(t, store)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, got, "wide")
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.Error(t, err)
	assert.Error(t, store.Save(context.Background(), "x", samplePreset("")))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("STUDIO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STUDIO_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, RedisConfig{Addr: addr, Key: "studio:test:" + t.Name()})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Clear(ctx)
		store.Close()
	})
	require.NoError(t, store.Clear(ctx))
	runStoreTests(t, store)
}

func TestRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{Addr: "127.0.0.1:1"})
	assert.ErrorIs(t, err, studio.ErrResourceUnavailable)
}

func TestSyncRestore(t *testing.T) {
	ctx := context.Background()
	book := studio.NewPresetBook()
	book.Put("one", []studio.PresetElement{{ID: "cam", Scale: 1}})
	book.Put("two", []studio.PresetElement{{ID: "cam", Scale: 0.5, Position: studio.Point{X: 5, Y: 5}}})

	store := NewMemoryStore()
	require.NoError(t, Sync(ctx, store, book))

	restored := studio.NewPresetBook()
	var resolved []string
	n, err := Restore(ctx, store, restored, func(id string) studio.Drawable {
		resolved = append(resolved, id)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"one", "two"}, restored.Names())
	assert.Equal(t, []string{"cam", "cam"}, resolved)

	p, err := restored.ByShortcut("ctrl+2")
	require.NoError(t, err)
	assert.Equal(t, "two", p.Name)
	assert.Equal(t, 0.5, p.Elements[0].Scale)
}

func TestSyncDeletesRemovedPresets(t *testing.T) {
	ctx := context.Background()
	book := studio.NewPresetBook()
	book.Put("p1", []studio.PresetElement{{ID: "cam", Scale: 1}})
	book.Put("p2", []studio.PresetElement{{ID: "cam", Scale: 0.5}})

	stores := map[string]Store{"memory": NewMemoryStore()}
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "presets.json"))
	require.NoError(t, err)
	stores["file"] = fs

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			b := studio.NewPresetBook()
			b.Import(book.Export(), nil)
			require.NoError(t, Sync(ctx, store, b))

			require.True(t, b.Delete("p1"))
			require.NoError(t, Sync(ctx, store, b))

			got, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, got, 1)
			assert.Contains(t, got, "p2")

			restored := studio.NewPresetBook()
			_, err = Restore(ctx, store, restored, nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"p2"}, restored.Names())
		})
	}
}

func TestSyncLoadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))
	store, err := NewFileStore(path)
	require.NoError(t, err)

	err = Sync(context.Background(), store, studio.NewPresetBook())
	assert.ErrorIs(t, err, studio.ErrResourceUnavailable)
}
