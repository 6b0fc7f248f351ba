// Package models defines data structures shared by the patcher packages.
package models

import (
	"sort"
	"time"
)

// Mapping binds a product code (tone) to its article id. The zero value is an
// empty, usable mapping. Construct non-empty mappings with NewMapping.
type Mapping struct {
	ids map[string]string
}

// NewMapping copies pairs into an immutable Mapping.
func NewMapping(pairs map[string]string) Mapping {
	ids := make(map[string]string, len(pairs))
	for code, id := range pairs {
		ids[code] = id
	}
	return Mapping{ids: ids}
}

// Lookup returns the id bound to code.
func (m Mapping) Lookup(code string) (string, bool) {
	id, ok := m.ids[code]
	return id, ok
}

// Len reports the number of bound codes.
func (m Mapping) Len() int {
	return len(m.ids)
}

// Codes returns the bound codes in sorted order.
func (m Mapping) Codes() []string {
	out := make([]string, 0, len(m.ids))
	for code := range m.ids {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// MappingStats counts how CSV rows contributed to a Mapping.
type MappingStats struct {
	Rows         int `json:"rows"`
	Bound        int `json:"bound"`
	MissingCode  int `json:"missing_code"`
	UnresolvedID int `json:"unresolved_id"`
	Overwritten  int `json:"overwritten"`
}

// Action describes what the patcher did with one entry block.
type Action string

const (
	ActionRenamed         Action = "renamed"
	ActionUpdated         Action = "updated"
	ActionInserted        Action = "inserted"
	ActionSkippedNoImage  Action = "skipped_no_image"
	ActionSkippedNoTone   Action = "skipped_no_tone"
	ActionSkippedUnmapped Action = "skipped_unmapped"
)

// Mutated reports whether the action changed the document.
func (a Action) Mutated() bool {
	return a == ActionRenamed || a == ActionUpdated || a == ActionInserted
}

// BlockOutcome is the per-block record of a patch run.
type BlockOutcome struct {
	Index  int    `csv:"index" json:"index"`
	Tone   string `csv:"tone" json:"tone,omitempty"`
	SKUID  string `csv:"sku_id" json:"sku_id,omitempty"`
	Action Action `csv:"action" json:"action"`
}

// Result holds the overall result of a patch run.
type Result struct {
	Mapping    MappingStats
	Codes      int
	Outcomes   []BlockOutcome
	OutputFile string
	StartTime  time.Time
	EndTime    time.Time
}

// CountByAction tallies outcomes per action.
func (r *Result) CountByAction() map[Action]int {
	out := make(map[Action]int)
	if r == nil {
		return out
	}
	for _, o := range r.Outcomes {
		out[o.Action]++
	}
	return out
}
