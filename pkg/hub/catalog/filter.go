package catalog

import (
	"slices"
	"sort"
	"strings"
)

// FilterState is the set of facets the resource library is narrowed by.
// Facets combine with AND; values inside a facet combine with OR.
type FilterState struct {
	SearchTerm string   `json:"searchTerm" form:"q"`
	Categories []string `json:"categories" form:"category"`
	Types      []string `json:"types" form:"type"`
	Tags       []string `json:"tags" form:"tag"`
}

// IsEmpty reports whether no facet narrows the collection.
func (s FilterState) IsEmpty() bool {
	return s.SearchTerm == "" && len(s.Categories) == 0 && len(s.Types) == 0 && len(s.Tags) == 0
}

// ToggleCategory adds category to the selection, or removes it if already selected.
func (s FilterState) ToggleCategory(category string) FilterState {
	s.Categories = toggle(s.Categories, category)
	return s
}

// ToggleType adds or removes a resource type from the selection.
func (s FilterState) ToggleType(typ string) FilterState {
	s.Types = toggle(s.Types, typ)
	return s
}

// ToggleTag adds or removes a tag from the selection.
func (s FilterState) ToggleTag(tag string) FilterState {
	s.Tags = toggle(s.Tags, tag)
	return s
}

// Clear resets every facet.
func (s FilterState) Clear() FilterState {
	return FilterState{}
}

// toggle never mutates values; callers may share the backing array.
func toggle(values []string, v string) []string {
	if i := slices.Index(values, v); i >= 0 {
		out := make([]string, 0, len(values)-1)
		out = append(out, values[:i]...)
		return append(out, values[i+1:]...)
	}
	out := make([]string, 0, len(values)+1)
	out = append(out, values...)
	return append(out, v)
}

// Filter returns the resources of all that match state, in their original order.
// It has no side effects and never returns nil.
func Filter(all []FlattenedResource, state FilterState) []FlattenedResource {
	out := make([]FlattenedResource, 0, len(all))
	term := strings.ToLower(state.SearchTerm)

	for _, r := range all {
		if !matchesSearch(r, term) {
			continue
		}
		if len(state.Categories) > 0 && !slices.Contains(state.Categories, r.Category) {
			continue
		}
		if len(state.Types) > 0 && !slices.Contains(state.Types, r.Type) {
			continue
		}
		if len(state.Tags) > 0 && !intersects(r.Tags, state.Tags) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// matchesSearch expects term already lower-cased.
func matchesSearch(r FlattenedResource, term string) bool {
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.Title), term) ||
		strings.Contains(strings.ToLower(r.Description), term) {
		return true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

func intersects(have, want []string) bool {
	for _, h := range have {
		if slices.Contains(want, h) {
			return true
		}
	}
	return false
}

// AllTags returns every distinct tag used across resources, sorted.
func AllTags(all []FlattenedResource) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0)
	for _, r := range all {
		for _, tag := range r.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}
