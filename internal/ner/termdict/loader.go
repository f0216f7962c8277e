package termdict

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/normalize"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/tokenizer"
)

// Config describes one termlist source and how to index it.
type Config struct {
	// Path is a local file path or an http(s) URL.
	Path string `yaml:"path"`
	// Format selects the column layout: "4", "6" or "bth".
	Format     string `yaml:"format"`
	SkipHeader bool   `yaml:"skip_header"`
	// ExtraFields is the number of columns beyond the standard five.
	ExtraFields int `yaml:"extra_fields"`
	// Normalize is the cascade specification, for example
	// "lowercase unicode-NFKC".
	Normalize string `yaml:"normalize"`
	// TokenPattern optionally replaces the default tokenizer rule.
	TokenPattern string `yaml:"token_pattern"`
	// AbbrevDetection selects the parenthesis-aware tokenizer, and
	// downstream the learning recognizer.
	AbbrevDetection bool `yaml:"abbrev_detection"`
	// AbbrevPattern optionally switches abbreviation detection to a
	// regular-expression lookahead instead of the token pattern.
	AbbrevPattern string   `yaml:"abbrev_pattern"`
	Stopwords     []string `yaml:"stopwords"`
	StopwordsFile string   `yaml:"stopwords_file"`
	// CacheDir overrides the cache location; it defaults to the
	// termlist's own directory.
	CacheDir    string `yaml:"cache_dir"`
	ForceReload bool   `yaml:"force_reload"`
}

// Dictionary bundles a built index with the exact text processing that
// produced it. Matching must reuse the same tokenizer and cascade, or
// sentence keys and index keys would disagree.
type Dictionary struct {
	Index     *Index
	Tokenizer *tokenizer.Tokenizer
	Chain     normalize.Chain
}

var loadGroup singleflight.Group

// flightKey identifies one load configuration. Two terminologies may
// share a termlist path with different text processing; they build
// different dictionaries and must not share a flight.
func (c Config) flightKey() string {
	return fmt.Sprintf("%s\x1f%s\x1f%t\x1f%d\x1f%s\x1f%s\x1f%t\x1f%s\x1f%s",
		c.Path, c.Format, c.SkipHeader, c.ExtraFields, c.Normalize,
		c.TokenPattern, c.AbbrevDetection,
		strings.Join(c.Stopwords, ","), c.StopwordsFile)
}

// Load returns the dictionary for cfg, reading the cache when a valid
// one exists and building from the source termlist otherwise.
// Concurrent calls with the same configuration share one load.
func Load(ctx context.Context, cfg Config) (*Dictionary, error) {
	v, err, _ := loadGroup.Do("load:"+cfg.flightKey(), func() (any, error) {
		return load(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dictionary), nil
}

// EnsureCache guarantees that a valid cache artifact exists for cfg
// without keeping the index in memory. Callers run it once before
// fanning out workers, so the workers all hit the cache instead of
// racing on an expensive build.
func EnsureCache(ctx context.Context, cfg Config) error {
	_, err, _ := loadGroup.Do("ensure:"+cfg.flightKey(), func() (any, error) {
		return nil, ensureCache(ctx, cfg)
	})
	return err
}

func load(ctx context.Context, cfg Config) (*Dictionary, error) {
	log := slog.Default().With("component", "termdict", "termlist", cfg.Path)

	tok, chain, err := textProcessing(cfg)
	if err != nil {
		return nil, err
	}
	stopwords, err := LoadStopwords(tok, chain, cfg.Stopwords, cfg.StopwordsFile)
	if err != nil {
		return nil, err
	}
	nFields := 5 + cfg.ExtraFields

	cache := cachePath(cfg.Path, cfg.CacheDir)
	if cache != "" && !cfg.ForceReload {
		x, err := readCache(cache, nFields, stopwords)
		if err == nil {
			log.Info("index loaded from cache", "cache", cache, "terms", x.Terms())
			return &Dictionary{Index: x, Tokenizer: tok, Chain: chain}, nil
		}
		if !os.IsNotExist(err) {
			log.Warn("index cache invalid, rebuilding", "cache", cache, "error", err)
		}
	}

	x, err := buildFromSource(ctx, cfg, tok, chain, stopwords)
	if err != nil {
		return nil, err
	}
	if cache == "" {
		log.Warn("remote termlist without cache_dir: index will not be cached")
	} else if err := writeCache(cache, x); err != nil {
		log.Warn("cannot write index cache", "cache", cache, "error", err)
	}
	return &Dictionary{Index: x, Tokenizer: tok, Chain: chain}, nil
}

func ensureCache(ctx context.Context, cfg Config) error {
	log := slog.Default().With("component", "termdict", "termlist", cfg.Path)

	cache := cachePath(cfg.Path, cfg.CacheDir)
	if cache == "" {
		log.Warn("remote termlist without cache_dir: nothing to ensure")
		return nil
	}
	nFields := 5 + cfg.ExtraFields
	if !cfg.ForceReload {
		if err := checkCache(cache, nFields); err == nil {
			return nil
		} else if !os.IsNotExist(err) {
			log.Warn("index cache invalid, rebuilding", "cache", cache, "error", err)
		}
	}

	tok, chain, err := textProcessing(cfg)
	if err != nil {
		return err
	}
	stopwords, err := LoadStopwords(tok, chain, cfg.Stopwords, cfg.StopwordsFile)
	if err != nil {
		return err
	}
	x, err := buildFromSource(ctx, cfg, tok, chain, stopwords)
	if err != nil {
		return err
	}
	if err := writeCache(cache, x); err != nil {
		log.Warn("cannot write index cache", "cache", cache, "error", err)
	}
	return nil
}

// textProcessing constructs the tokenizer and normalization cascade
// shared by index construction and matching.
func textProcessing(cfg Config) (*tokenizer.Tokenizer, normalize.Chain, error) {
	chain, err := normalize.Parse(cfg.Normalize)
	if err != nil {
		return nil, nil, err
	}
	var tok *tokenizer.Tokenizer
	switch {
	case cfg.TokenPattern != "":
		tok, err = tokenizer.NewPattern(cfg.TokenPattern)
		if err != nil {
			return nil, nil, err
		}
	case cfg.AbbrevDetection:
		tok = tokenizer.NewWithParens()
	default:
		tok = tokenizer.New()
	}
	return tok, chain, nil
}

func buildFromSource(ctx context.Context, cfg Config, tok *tokenizer.Tokenizer, chain normalize.Chain, stopwords map[string]struct{}) (*Index, error) {
	layout, err := Layout(cfg.Format)
	if err != nil {
		return nil, err
	}
	if cfg.Format == "hub" {
		slog.Default().With("component", "termdict").
			Warn(`termlist format "hub" is deprecated, use "bth"`)
	}

	src, err := openSource(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	builder := NewBuilder(tok, chain, layout, cfg.ExtraFields, stopwords)
	reader := newTSVReader(src)
	skip := cfg.SkipHeader
	for {
		fields, line, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("termlist %s: %w", cfg.Path, err)
		}
		if skip {
			skip = false
			continue
		}
		if err := builder.Add(fields, line); err != nil {
			return nil, fmt.Errorf("termlist %s: %w", cfg.Path, err)
		}
	}
	return builder.Build(), nil
}
