package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/matcher"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/normalize"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/postfilter"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/termdict"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/merger"
)

// benchDict builds a dictionary whose surface forms actually occur in the
// sample sentences, so the scan exercises the hit path, not just misses.
func benchDict(b *testing.B, parens bool) *termdict.Dictionary {
	b.Helper()
	tok := tokenizer.New()
	if parens {
		tok = tokenizer.NewWithParens()
	}
	chain, err := normalize.Parse("lowercase greektranslit")
	if err != nil {
		b.Fatal(err)
	}
	layout, err := termdict.Layout("bth")
	if err != nil {
		b.Fatal(err)
	}
	builder := termdict.NewBuilder(tok, chain, layout, 0, nil)
	rows := [][]string{
		{"C0030567", "ctd", "D010300", "parkinson disease", "Parkinson Disease", "disease"},
		{"C0037019", "uniprot", "P37840", "alpha-synuclein", "Alpha-synuclein", "protein"},
		{"C1414189", "hgnc", "HGNC:11138", "SNCA", "SNCA", "gene"},
		{"C0023570", "ctd", "D007980", "levodopa", "Levodopa", "chemical"},
		{"C0041363", "uniprot", "P01375", "tumor necrosis factor alpha", "TNF alpha", "protein"},
		{"C0003873", "ctd", "D001172", "rheumatoid arthritis", "Rheumatoid Arthritis", "disease"},
		{"C0021390", "ctd", "D015212", "inflammatory bowel disease", "IBD", "disease"},
		{"C0123456", "ctd", "C076003", "infliximab", "Infliximab", "chemical"},
		{"C0006560", "uniprot", "P02741", "c-reactive protein", "C-reactive protein", "protein"},
	}
	for i, row := range rows {
		if err := builder.Add(row, i+1); err != nil {
			b.Fatal(err)
		}
	}
	return &termdict.Dictionary{Index: builder.Build(), Tokenizer: tok, Chain: chain}
}

// BenchmarkRecognize measures the single-pass sentence scan.
func BenchmarkRecognize(b *testing.B) {
	eng := matcher.New(benchDict(b, false))
	for name, text := range sampleSentences {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				matches := eng.Recognize(text)
				_ = matches
			}
		})
	}
}

// BenchmarkRecognizeParallel measures concurrent scans over the shared
// read-only engine, the hot path of the recognizer service.
func BenchmarkRecognizeParallel(b *testing.B) {
	eng := matcher.New(benchDict(b, false))
	text := sampleSentences["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			matches := eng.Recognize(text)
			_ = matches
		}
	})
}

// BenchmarkSessionRecognize measures a learning session over a document
// that keeps introducing a parenthesized short form, including the
// per-document Reset.
func BenchmarkSessionRecognize(b *testing.B) {
	eng, err := matcher.NewLearning(benchDict(b, true), "")
	if err != nil {
		b.Fatal(err)
	}
	sentences := []string{
		"Tumor necrosis factor alpha (TNFa) drives inflammation.",
		"Elevated TNFa was observed in rheumatoid arthritis.",
		"Infliximab neutralizes TNFa in inflammatory bowel disease.",
	}
	sess := eng.NewSession()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, s := range sentences {
			matches := sess.Recognize(s)
			_ = matches
		}
		sess.Reset()
	}
}

// overlapEntities builds n chain-overlapping spans, worst case for the
// resolution filters.
func overlapEntities(n int) []document.Entity {
	entry := &termdict.TermEntry{Type: "disease"}
	entities := make([]document.Entity, n)
	for i := range entities {
		entities[i] = document.Entity{
			ID:    i + 1,
			Start: i * 4,
			End:   i*4 + 6 + i%3,
			Entry: entry,
		}
	}
	return entities
}

func BenchmarkPostfilter(b *testing.B) {
	filters := map[string]postfilter.Filter{
		"submatches": postfilter.RemoveSubmatches,
		"overlaps":   postfilter.RemoveOverlaps,
	}
	for name, filter := range filters {
		for _, n := range []int{10, 100, 1000} {
			b.Run(fmt.Sprintf("%s_%d", name, n), func(b *testing.B) {
				src := overlapEntities(n)
				work := make([]document.Entity, n)
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					copy(work, src)
					kept := filter(work)
					_ = kept
				}
			})
		}
	}
}

// BenchmarkMerge measures the k-way position merge of per-terminology
// results for one sentence.
func BenchmarkMerge(b *testing.B) {
	entry := &termdict.TermEntry{Type: "disease"}
	for _, k := range []int{2, 4, 8} {
		lists := make([][]document.Entity, k)
		for t := range lists {
			for i := 0; i < 50; i++ {
				lists[t] = append(lists[t], document.Entity{
					Start: i*10 + t,
					End:   i*10 + t + 5,
					Entry: entry,
				})
			}
		}
		b.Run(fmt.Sprintf("terminologies_%d", k), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				merged := merger.Merge(lists)
				_ = merged
			}
		})
	}
}
