// Package termdict builds and serves the in-memory term dictionary:
// the lookup structures that map normalized token spans to biomedical
// concept records.
package termdict

import (
	"fmt"
	"strings"
)

// TermEntry is one concept record attached to a dictionary surface
// form. Several entries may share a surface form (homonymous
// concepts); they are kept side by side, never merged or blanked.
type TermEntry struct {
	Type             string   `json:"type"`
	PreferredForm    string   `json:"preferred_form"`
	OriginalResource string   `json:"original_resource"`
	NativeID         string   `json:"native_id"`
	CUI              string   `json:"umls_cui"`
	Extra            []string `json:"extra,omitempty"`
}

// NFields is the row arity occupied by this entry: the five standard
// fields plus any extras. The surface term itself is not counted.
func (e *TermEntry) NFields() int {
	return 5 + len(e.Extra)
}

// identity is a canonical string for set-membership checks.
func (e *TermEntry) identity() string {
	parts := make([]string, 0, 5+len(e.Extra))
	parts = append(parts, e.Type, e.PreferredForm, e.OriginalResource, e.NativeID, e.CUI)
	parts = append(parts, e.Extra...)
	return strings.Join(parts, keySep)
}

// Union returns the set union of two entry slices, preserving order of
// first appearance. When add contributes nothing new, base is returned
// untouched; otherwise the result is a fresh slice, so callers can
// union against shared index data without mutating it.
func Union(base, add []TermEntry) []TermEntry {
	seen := make(map[string]struct{}, len(base))
	for i := range base {
		seen[base[i].identity()] = struct{}{}
	}
	out := base
	grown := false
	for i := range add {
		id := add[i].identity()
		if _, ok := seen[id]; ok {
			continue
		}
		if !grown {
			out = append([]TermEntry(nil), base...)
			grown = true
		}
		seen[id] = struct{}{}
		out = append(out, add[i])
	}
	return out
}

// RowLayout maps one raw termlist row onto a surface term and its
// concept record. It fails on rows too short for the layout.
type RowLayout func(fields []string) (term string, entry TermEntry, err error)

// Layout resolves a configured layout name. "hub" is accepted as a
// deprecated alias for "bth". An unknown name is a configuration
// error.
func Layout(name string) (RowLayout, error) {
	switch name {
	case "4":
		return layout4, nil
	case "6":
		return layout6, nil
	case "bth", "hub":
		return layoutBTH, nil
	default:
		return nil, fmt.Errorf("unknown termlist format %q", name)
	}
}

// layout4 is the legacy four-column layout:
// [0] native ID, [1] term, [2] type, [3] preferred form.
func layout4(fields []string) (string, TermEntry, error) {
	if len(fields) < 4 {
		return "", TermEntry{}, fmt.Errorf("need at least 4 columns, got %d", len(fields))
	}
	entry := TermEntry{
		Type:             fields[2],
		PreferredForm:    fields[3],
		OriginalResource: "unknown",
		NativeID:         fields[0],
		CUI:              "none",
		Extra:            extraFields(fields[4:]),
	}
	return fields[1], entry, nil
}

// layout6 extends the legacy layout with the originating resource and
// the concept identifier:
// [0] native ID, [1] term, [2] type, [3] preferred form,
// [4] resource, [5] concept ID.
func layout6(fields []string) (string, TermEntry, error) {
	if len(fields) < 6 {
		return "", TermEntry{}, fmt.Errorf("need at least 6 columns, got %d", len(fields))
	}
	entry := TermEntry{
		Type:             fields[2],
		PreferredForm:    fields[3],
		OriginalResource: fields[4],
		NativeID:         fields[0],
		CUI:              fields[5],
		Extra:            extraFields(fields[6:]),
	}
	return fields[1], entry, nil
}

// layoutBTH is the Bio Term Hub column order:
// [0] concept ID, [1] resource, [2] native ID, [3] term,
// [4] preferred form, [5] type.
func layoutBTH(fields []string) (string, TermEntry, error) {
	if len(fields) < 6 {
		return "", TermEntry{}, fmt.Errorf("need at least 6 columns, got %d", len(fields))
	}
	entry := TermEntry{
		Type:             fields[5],
		PreferredForm:    fields[4],
		OriginalResource: fields[1],
		NativeID:         fields[2],
		CUI:              fields[0],
		Extra:            extraFields(fields[6:]),
	}
	return fields[3], entry, nil
}

func extraFields(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}
