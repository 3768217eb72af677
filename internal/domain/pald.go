// Package domain contains pure, dependency-free domain models and types
// for the PALD consistency engine.
package domain

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// The three design abstraction levels of a PALD (Pedagogical Agent
// Level-of-Design) document. Any level may be absent; absence is
// semantically distinct from an empty level.
const (
	// LevelGlobal holds the coarsest design attributes such as the
	// agent's overall appearance, role, and demeanor.
	LevelGlobal = "global_design_level"

	// LevelMiddle holds intermediate attributes such as clothing,
	// hairstyle, and body type.
	LevelMiddle = "middle_design_level"

	// LevelDetailed holds fine-grained attributes such as eye color
	// and accessories.
	LevelDetailed = "detailed_level"
)

// KnownLevels lists the recognized level keys in priority order,
// from coarsest to finest.
var KnownLevels = []string{LevelGlobal, LevelMiddle, LevelDetailed}

// Level maps attribute names to their values. Values are free-text
// strings in well-formed documents, but the model tolerates arbitrary
// scalars since documents are frequently re-extracted from LLM output.
type Level map[string]any

// Document is a sparse PALD document: a mapping from level key to the
// attributes recorded at that level.
type Document map[string]Level

// Normalize converts a loosely typed JSON object into a Document.
// Any top-level entry whose value is not an object is dropped rather
// than rejected; a malformed level degrades to "absent".
func Normalize(raw map[string]any) Document {
	if len(raw) == 0 {
		return Document{}
	}

	doc := make(Document, len(raw))
	for key, value := range raw {
		attrs, ok := value.(map[string]any)
		if !ok {
			continue
		}
		level := make(Level, len(attrs))
		for name, v := range attrs {
			level[name] = v
		}
		doc[key] = level
	}
	return doc
}

// Clone returns a deep copy of the document. Attribute values are
// copied by assignment; they are treated as immutable scalars.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}

	clone := make(Document, len(d))
	for key, level := range d {
		copied := make(Level, len(level))
		for name, value := range level {
			copied[name] = value
		}
		clone[key] = copied
	}
	return clone
}

// IsEmpty reports whether the document carries no attributes at all.
// A document whose levels are all present but empty is considered
// empty, matching the extractor's "no usable structure" semantics.
func (d Document) IsEmpty() bool {
	for _, level := range d {
		if len(level) > 0 {
			return false
		}
	}
	return true
}

// AttributeString returns the attribute's value as a string.
// Non-string values and absent attributes yield ok == false.
func (d Document) AttributeString(level, name string) (string, bool) {
	attrs, ok := d[level]
	if !ok {
		return "", false
	}
	value, ok := attrs[name]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// Fingerprint computes a structural hash over the document's levels,
// attribute names, and values in a canonical order. Two documents with
// equal content always produce the same fingerprint, which makes it
// usable as a memoization key.
func (d Document) Fingerprint() uint64 {
	h := fnv.New64a()

	levels := make([]string, 0, len(d))
	for key := range d {
		levels = append(levels, key)
	}
	sort.Strings(levels)

	for _, key := range levels {
		fmt.Fprintf(h, "%s\x1f", key)

		attrs := d[key]
		names := make([]string, 0, len(attrs))
		for name := range attrs {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fmt.Fprintf(h, "%s\x1e%v\x1d", name, attrs[name])
		}
	}
	return h.Sum64()
}
