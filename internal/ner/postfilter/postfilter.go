// Package postfilter prunes raw matcher output. The matching engine
// reports every dictionary hit, including nested and overlapping
// spans; these filters reduce a sentence's entity list to a clean
// annotation layer. All filters expect the list sorted by
// (Start, End) and return it sorted the same way.
package postfilter

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
)

// Filter prunes one sentence's entity list, reusing its backing array.
type Filter func([]document.Entity) []document.Entity

// ByName resolves a configured filter name.
func ByName(name string) (Filter, error) {
	switch name {
	case "submatches":
		return RemoveSubmatches, nil
	case "sametype-submatches":
		return RemoveSametypeSubmatches, nil
	case "overlaps":
		return RemoveOverlaps, nil
	case "sametype-overlaps":
		return RemoveSametypeOverlaps, nil
	case "frequent-fp":
		return RemoveFrequentFP, nil
	}
	return nil, fmt.Errorf("unknown postfilter %q", name)
}

// Resolve maps a configured name list to filters, preserving order.
func Resolve(names []string) ([]Filter, error) {
	filters := make([]Filter, 0, len(names))
	for _, name := range names {
		f, err := ByName(name)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// Apply runs the filters in order over every sentence of the article.
func Apply(a *document.Article, filters []Filter) {
	for _, sec := range a.Sections {
		for _, sent := range sec.Sentences {
			for _, f := range filters {
				sent.Entities = f(sent.Entities)
			}
		}
	}
}

// RemoveSubmatches drops every entity whose span is strictly contained
// in another entity's span, regardless of type.
func RemoveSubmatches(entities []document.Entity) []document.Entity {
	if len(entities) < 2 {
		return entities
	}
	drop := submatchIndices(entities)
	if len(drop) == 0 {
		return entities
	}
	kept := entities[:0]
	for i := range entities {
		if !drop[i] {
			kept = append(kept, entities[i])
		}
	}
	return kept
}

// RemoveSametypeSubmatches drops contained entities only when the
// containing entity has the same type.
func RemoveSametypeSubmatches(entities []document.Entity) []document.Entity {
	return bySameType(entities, RemoveSubmatches)
}

// submatchIndices marks entities contained in another one. The list is
// sorted, so a single reference suffices for comparison; a run of
// entities tied with the reference's offsets is tracked along with it,
// to be dropped together when a later entity contains them all.
func submatchIndices(entities []document.Entity) map[int]bool {
	drop := make(map[int]bool)
	var refIs []int
	ref := 0
	for i := range entities {
		if i > 0 {
			if contains(&entities[ref], &entities[i]) {
				drop[i] = true
				continue
			} else if contains(&entities[i], &entities[ref]) {
				for _, j := range refIs {
					drop[j] = true
				}
			} else if sameSpan(&entities[i], &entities[ref]) {
				refIs = append(refIs, i)
				continue
			}
		}
		// The current entity ends at or after the reference, and no
		// later entity starts before it, so it becomes the reference.
		refIs = []int{i}
		ref = i
	}
	return drop
}

func contains(a, b *document.Entity) bool {
	return (a.Start <= b.Start && a.End > b.End) ||
		(a.Start < b.Start && a.End >= b.End)
}

func sameSpan(a, b *document.Entity) bool {
	return a.Start == b.Start && a.End == b.End
}

// RemoveOverlaps keeps only the longest span(s) in every cluster of
// overlapping entities, regardless of type. A cluster is a maximal run
// of spans chained together by shared positions; length ties all
// survive.
func RemoveOverlaps(entities []document.Entity) []document.Entity {
	if len(entities) < 2 {
		return entities
	}
	out := entities[:0]
	for start := 0; start < len(entities); {
		end := start + 1
		maxEnd := entities[start].End
		for end < len(entities) && entities[end].Start < maxEnd {
			if entities[end].End > maxEnd {
				maxEnd = entities[end].End
			}
			end++
		}
		if end-start == 1 {
			out = append(out, entities[start])
		} else {
			longest := 0
			for i := start; i < end; i++ {
				if l := entities[i].End - entities[i].Start; l > longest {
					longest = l
				}
			}
			for i := start; i < end; i++ {
				if entities[i].End-entities[i].Start == longest {
					out = append(out, entities[i])
				}
			}
		}
		start = end
	}
	return out
}

// RemoveSametypeOverlaps applies the overlap rule within same-type
// partitions; overlapping entities of different types are kept.
func RemoveSametypeOverlaps(entities []document.Entity) []document.Entity {
	return bySameType(entities, RemoveOverlaps)
}

// bySameType partitions by entity type, filters each partition and
// merges the survivors back into offset order.
func bySameType(entities []document.Entity, filter Filter) []document.Entity {
	if len(entities) < 2 {
		return entities
	}
	var order []string
	parts := make(map[string][]document.Entity)
	for i := range entities {
		typ := entities[i].Type()
		if _, ok := parts[typ]; !ok {
			order = append(order, typ)
		}
		parts[typ] = append(parts[typ], entities[i])
	}
	out := entities[:0]
	for _, typ := range order {
		out = append(out, filter(parts[typ])...)
	}
	document.SortEntities(out)
	return out
}
