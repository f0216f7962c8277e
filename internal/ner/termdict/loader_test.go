package termdict

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const sampleTermlist = "OG1\tctd\tD003920\tdiabetes mellitus\tDiabetes Mellitus\tdisease\n" +
	"OG2\tuniprot\tP01308\tinsulin\tInsulin\tprotein\n"

func writeTermlist(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(path string) Config {
	return Config{
		Path:      path,
		Format:    "bth",
		Normalize: "lowercase",
	}
}

func TestLoadBuildsAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := writeTermlist(t, dir, "terms.tsv", sampleTermlist)

	dict, err := Load(context.Background(), testConfig(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if dict.Index.Terms() != 2 {
		t.Errorf("Terms = %d, want 2", dict.Index.Terms())
	}

	cache := filepath.Join(dir, "terms.tsv.idx")
	if _, err := os.Stat(cache); err != nil {
		t.Fatalf("cache not written: %v", err)
	}

	// Corrupt the source file. A second load must come from the cache
	// and still see the original terms.
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	dict2, err := Load(context.Background(), testConfig(path))
	if err != nil {
		t.Fatalf("cached Load: %v", err)
	}
	if dict2.Index.Terms() != 2 {
		t.Errorf("cached Terms = %d, want 2", dict2.Index.Terms())
	}
	if got := dict2.Index.Entries(Key([]string{"insulin"})); len(got) != 1 || got[0].NativeID != "P01308" {
		t.Errorf("cached entries = %+v", got)
	}
}

func TestLoadForceReload(t *testing.T) {
	dir := t.TempDir()
	path := writeTermlist(t, dir, "terms.tsv", sampleTermlist)

	if _, err := Load(context.Background(), testConfig(path)); err != nil {
		t.Fatal(err)
	}
	// Replace the source with a single-row list and force a rebuild.
	writeTermlist(t, dir, "terms.tsv", "OG9\tctd\tD1\tasthma\tAsthma\tdisease\n")
	cfg := testConfig(path)
	cfg.ForceReload = true
	dict, err := Load(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if dict.Index.Terms() != 1 {
		t.Errorf("Terms = %d, want 1", dict.Index.Terms())
	}
}

func TestLoadInvalidCacheRebuilds(t *testing.T) {
	dir := t.TempDir()
	path := writeTermlist(t, dir, "terms.tsv", sampleTermlist)
	cache := filepath.Join(dir, "terms.tsv.idx")

	if err := os.WriteFile(cache, []byte("not a cache file"), 0o644); err != nil {
		t.Fatal(err)
	}
	dict, err := Load(context.Background(), testConfig(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if dict.Index.Terms() != 2 {
		t.Errorf("Terms = %d, want 2", dict.Index.Terms())
	}
}

func TestLoadFieldCountInvalidatesCache(t *testing.T) {
	dir := t.TempDir()
	extended := "OG1\tctd\tD003920\tdiabetes mellitus\tDiabetes Mellitus\tdisease\tx\n"
	path := writeTermlist(t, dir, "terms.tsv", extended)

	cfg := testConfig(path)
	cfg.ExtraFields = 1
	if _, err := Load(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}

	// Same cache file, different configured arity: the cache must be
	// rejected, and the rebuild must fail on the arity mismatch.
	if _, err := Load(context.Background(), testConfig(path)); err == nil {
		t.Error("expected field-count error after cache invalidation")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	x := buildIndex(t, [][]string{
		bthRow("OG1", "ctd", "D1", "diabetes mellitus", "DM", "disease"),
	}, nil)

	path := filepath.Join(dir, "terms.tsv.idx")
	if err := writeCache(path, x); err != nil {
		t.Fatalf("writeCache: %v", err)
	}
	loaded, err := readCache(path, 5, nil)
	if err != nil {
		t.Fatalf("readCache: %v", err)
	}
	key := Key([]string{"diabetes", "mellitus"})
	if got := loaded.Entries(key); len(got) != 1 || got[0].PreferredForm != "DM" {
		t.Errorf("entries after round trip = %+v", got)
	}
	if got := loaded.CandidateLengths("diabetes"); len(got) != 1 || got[0] != 2 {
		t.Errorf("lengths after round trip = %v", got)
	}

	if _, err := readCache(path, 6, nil); err == nil {
		t.Error("field-count mismatch accepted")
	}

	// Flip one payload byte: the checksum must catch it.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[cacheHeaderSize+3] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readCache(path, 5, nil); err == nil {
		t.Error("corrupted cache accepted")
	}
}

func TestEnsureCache(t *testing.T) {
	dir := t.TempDir()
	path := writeTermlist(t, dir, "terms.tsv", sampleTermlist)
	cache := filepath.Join(dir, "terms.tsv.idx")

	if err := EnsureCache(context.Background(), testConfig(path)); err != nil {
		t.Fatalf("EnsureCache: %v", err)
	}
	info, err := os.Stat(cache)
	if err != nil {
		t.Fatalf("cache not written: %v", err)
	}

	// A second call must leave the existing cache untouched.
	if err := EnsureCache(context.Background(), testConfig(path)); err != nil {
		t.Fatal(err)
	}
	info2, err := os.Stat(cache)
	if err != nil {
		t.Fatal(err)
	}
	if !info2.ModTime().Equal(info.ModTime()) {
		t.Error("valid cache was rebuilt")
	}
}

func TestLoadRemoteTermlist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleTermlist))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL + "/terms.tsv")
	cfg.CacheDir = t.TempDir()
	dict, err := Load(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if dict.Index.Terms() != 2 {
		t.Errorf("Terms = %d, want 2", dict.Index.Terms())
	}
	if _, err := os.Stat(filepath.Join(cfg.CacheDir, "terms.tsv.idx")); err != nil {
		t.Errorf("remote cache not written: %v", err)
	}
}

func TestLoadSharedPathDistinctConfigs(t *testing.T) {
	// Two terminologies may point at the same termlist with different
	// text processing. Concurrent loads must not share a flight: each
	// caller gets a dictionary built with its own cascade.
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(sampleTermlist))
	}))
	defer srv.Close()

	cfgPlain := Config{Path: srv.URL + "/shared.tsv", Format: "bth", CacheDir: t.TempDir()}
	cfgLower := cfgPlain
	cfgLower.Normalize = "lowercase"
	cfgLower.CacheDir = t.TempDir()

	var (
		wg        sync.WaitGroup
		dictPlain *Dictionary
		dictLower *Dictionary
		errPlain  error
		errLower  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		dictPlain, errPlain = Load(context.Background(), cfgPlain)
	}()
	go func() {
		defer wg.Done()
		dictLower, errLower = Load(context.Background(), cfgLower)
	}()
	wg.Wait()

	if errPlain != nil || errLower != nil {
		t.Fatalf("Load: %v / %v", errPlain, errLower)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("termlist fetched %d times, want 2 (one per configuration)", got)
	}
	if got := dictPlain.Chain.Apply("TNF"); got != "TNF" {
		t.Errorf("plain chain Apply(TNF) = %q, want TNF", got)
	}
	if got := dictLower.Chain.Apply("TNF"); got != "tnf" {
		t.Errorf("lowercase chain Apply(TNF) = %q, want tnf", got)
	}
}

func TestLoadUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeTermlist(t, dir, "terms.tsv", sampleTermlist)
	cfg := testConfig(path)
	cfg.Format = "9"
	if _, err := Load(context.Background(), cfg); err == nil {
		t.Error("unknown format accepted")
	}
}
