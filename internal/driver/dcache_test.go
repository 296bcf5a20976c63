package driver

import (
	"context"
	"os"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"strictparent/internal/diag"
	"strictparent/internal/project"
	"strictparent/internal/source"
)

func TestDiskCacheRoundTrip(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fs := source.NewFileSet()
	id := fs.AddVirtual("zoo.classes.toml", []byte("[[class]]\nname = \"Dog\"\n"))
	file := fs.Get(id)

	bag := diag.NewBag(10)
	bag.Add(diag.New(diag.SevError, diag.HierUndeclaredOverride, source.Span{File: id, Start: 17, End: 22}, "shadows").
		WithNote(source.Span{File: id, Start: 0, End: 9}, "here").
		WithFix("mark", diag.FixEdit{Span: source.Span{File: id, Start: 22, End: 22}, NewText: "x"}))
	verdicts := []ClassVerdict{{Name: "Dog", State: "rejected"}}

	key := cacheKey(file, project.Default().Fingerprint(), 0)
	if hit, err := cache.Get(key, &DiskPayload{}); hit || err != nil {
		t.Fatalf("empty cache: hit=%v err=%v", hit, err)
	}
	if err := cache.Put(key, toDiskPayload(file, bag, verdicts)); err != nil {
		t.Fatal(err)
	}

	// same file under another ID
	other := source.NewFileSet()
	other.AddVirtual("pad", nil)
	newID := other.AddVirtual("zoo.classes.toml", file.Content)

	var payload DiskPayload
	hit, err := cache.Get(key, &payload)
	if err != nil || !hit {
		t.Fatalf("hit=%v err=%v", hit, err)
	}
	restored := diag.NewBag(10)
	payload.restore(newID, restored)
	if restored.Len() != 1 {
		t.Fatalf("restored %d diagnostics", restored.Len())
	}
	d := restored.Items()[0]
	if d.Primary.File != newID || d.Primary.Start != 17 || d.Code != diag.HierUndeclaredOverride {
		t.Errorf("unexpected primary: %+v", d)
	}
	if len(d.Notes) != 1 || d.Notes[0].Span.File != newID || len(d.Fixes) != 1 || d.Fixes[0].Edits[0].NewText != "x" {
		t.Errorf("notes/fixes not restored: %+v", d)
	}
	if len(payload.Verdicts) != 1 || payload.Verdicts[0].Name != "Dog" {
		t.Errorf("verdicts = %+v", payload.Verdicts)
	}

	if err := cache.DropAll(); err != nil {
		t.Fatal(err)
	}
	if hit, _ := cache.Get(key, &DiskPayload{}); hit {
		t.Error("DropAll must clear entries")
	}
	if _, err := os.Stat(cache.Dir()); err != nil {
		t.Errorf("cache dir must be recreated: %v", err)
	}
}

func TestDiskCacheSchemaMismatchAndCorruption(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := project.DigestOf([]byte("k"))
	if err := os.MkdirAll(cache.Dir()+"/verdicts/"+key.String()[:2], 0o755); err != nil {
		t.Fatal(err)
	}

	stale, err := msgpack.Marshal(&DiskPayload{Schema: diskCacheSchemaVersion + 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cache.pathFor(key), stale, 0o600); err != nil {
		t.Fatal(err)
	}
	if hit, err := cache.Get(key, &DiskPayload{}); hit || err != nil {
		t.Errorf("stale schema: hit=%v err=%v", hit, err)
	}

	if err := os.WriteFile(cache.pathFor(key), []byte{0xc1}, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(key, &DiskPayload{}); err == nil {
		t.Error("corrupted entry must report an error")
	}

	var nilCache *DiskCache
	if hit, err := nilCache.Get(key, &DiskPayload{}); hit || err != nil {
		t.Error("nil cache is always a miss")
	}
	if nilCache.Put(key, &DiskPayload{}) != nil || nilCache.DropAll() != nil || nilCache.Dir() != "" {
		t.Error("nil cache must be inert")
	}
}

func TestDiskCacheKeyTracksDiagnosticLimit(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	run := func(limit int) *Result {
		t.Helper()
		opts := Options{Config: project.Default(), MaxDiagnostics: limit, Cache: cache}
		res, err := CheckSource(context.Background(), "zoo.classes.toml", []byte(colourShapes), opts)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	if limited := run(1); limited.Diagnostics().Len() != 1 || limited.Files[0].Cached {
		t.Fatalf("limited run: %d diagnostics, cached=%v", limited.Diagnostics().Len(), limited.Files[0].Cached)
	}
	full := run(0)
	if full.Files[0].Cached {
		t.Fatal("a limited entry must not serve an unlimited run")
	}
	if n := full.Diagnostics().Len(); n != 3 {
		t.Fatalf("unlimited run: %d diagnostics, want 3", n)
	}
	again := run(0)
	if !again.Files[0].Cached || again.Diagnostics().Len() != 3 {
		t.Fatalf("unlimited rerun: cached=%v diagnostics=%d", again.Files[0].Cached, again.Diagnostics().Len())
	}
}

