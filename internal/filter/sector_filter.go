// Package filter holds the inclusion rule applied to harvested activities.
//
// The Datastore search matches any sector_code regardless of vocabulary, so
// results are a superset of what is wanted. SectorFilter narrows them to
// activities that declare one of the configured codes under the DAC
// vocabulary, either on the activity itself or on any of its transactions.
package filter

import (
	"strings"

	"github.com/iatidata/sector-harvester/internal/model"
)

// SectorFilter matches activities against a fixed set of classification codes.
type SectorFilter struct {
	codes map[string]struct{}
}

// NewSectorFilter builds a filter for the given codes. Codes are trimmed.
func NewSectorFilter(codes []string) *SectorFilter {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			set[c] = struct{}{}
		}
	}
	return &SectorFilter{codes: set}
}

// Includes reports whether the activity should be kept.
func (f *SectorFilter) Includes(a *model.Activity) bool {
	_, ok := f.Match(a)
	return ok
}

// Match returns the first sector entry that satisfies the rule.
func (f *SectorFilter) Match(a *model.Activity) (model.Sector, bool) {
	if a == nil {
		return model.Sector{}, false
	}
	for _, s := range a.AllSectors() {
		if f.matches(s) {
			return s, true
		}
	}
	return model.Sector{}, false
}

func (f *SectorFilter) matches(s model.Sector) bool {
	if _, ok := f.codes[s.Code()]; !ok {
		return false
	}
	return s.Vocabulary() == model.DefaultVocabulary
}
