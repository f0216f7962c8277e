// Package benchmark contains Go benchmarks for the recognition engine:
// tokenization, index construction, dictionary lookup and the annotate
// pipeline, measuring throughput and allocation behaviour.
package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/normalize"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/termdict"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/tokenizer"
)

// termRow produces a synthetic Bio-Term-Hub row. Roughly every fourth
// term is multi-token, which keeps the first-token length sets honest.
func termRow(i int) []string {
	term := fmt.Sprintf("term%d", i)
	if i%4 == 0 {
		term = fmt.Sprintf("term%d variant %d", i, i%7)
	}
	return []string{
		fmt.Sprintf("CUI%06d", i),
		"benchres",
		fmt.Sprintf("N%06d", i),
		term,
		term,
		[]string{"disease", "protein", "chemical"}[i%3],
	}
}

func buildIndex(b *testing.B, rows int) *termdict.Index {
	b.Helper()
	tok := tokenizer.New()
	chain, err := normalize.Parse("lowercase")
	if err != nil {
		b.Fatal(err)
	}
	layout, err := termdict.Layout("bth")
	if err != nil {
		b.Fatal(err)
	}
	builder := termdict.NewBuilder(tok, chain, layout, 0, nil)
	for i := 0; i < rows; i++ {
		if err := builder.Add(termRow(i), i+1); err != nil {
			b.Fatal(err)
		}
	}
	return builder.Build()
}

// BenchmarkIndexBuild measures termlist indexing throughput at several
// dictionary sizes.
func BenchmarkIndexBuild(b *testing.B) {
	for _, rows := range []int{1000, 10000, 100000} {
		b.Run(fmt.Sprintf("rows_%d", rows), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				x := buildIndex(b, rows)
				_ = x
			}
		})
	}
}

// BenchmarkIndexLookup measures candidate lookup latency over a 100k-term
// index: one first-token probe plus one full-key probe, the inner loop of
// the matching engine.
func BenchmarkIndexLookup(b *testing.B) {
	x := buildIndex(b, 100000)
	norm := []string{"term42", "variant"}
	exact := []string{"Term42", "Variant"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lengths := x.CandidateLengths(norm[0])
		_ = lengths
		entries := x.Entries(x.MatchKey(norm[:1], exact[:1]))
		_ = entries
	}
}

// BenchmarkIndexLookupParallel measures concurrent read throughput on the
// shared immutable index.
func BenchmarkIndexLookupParallel(b *testing.B) {
	x := buildIndex(b, 100000)
	norm := []string{"term42"}
	exact := []string{"Term42"}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			entries := x.Entries(x.MatchKey(norm, exact))
			_ = entries
		}
	})
}

// BenchmarkDictionaryLoad measures a full load from a termlist file, cold
// (forced rebuild, cache bypassed) versus warm (valid cache artifact).
func BenchmarkDictionaryLoad(b *testing.B) {
	dir := b.TempDir()
	path := filepath.Join(dir, "bench.tsv")
	var sb strings.Builder
	for i := 0; i < 20000; i++ {
		sb.WriteString(strings.Join(termRow(i), "\t"))
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		b.Fatal(err)
	}

	cfg := termdict.Config{
		Path:      path,
		Format:    "bth",
		Normalize: "lowercase",
		CacheDir:  dir,
	}

	b.Run("cold", func(b *testing.B) {
		cold := cfg
		cold.ForceReload = true
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := termdict.Load(context.Background(), cold); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("cached", func(b *testing.B) {
		// Prime the cache artifact once.
		if _, err := termdict.Load(context.Background(), cfg); err != nil {
			b.Fatal(err)
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := termdict.Load(context.Background(), cfg); err != nil {
				b.Fatal(err)
			}
		}
	})
}
