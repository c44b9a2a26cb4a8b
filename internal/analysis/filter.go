package analysis

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/hunseop/hoon-firewall-modules/internal/model"
	"github.com/hunseop/hoon-firewall-modules/internal/policyset"
)

// MatchMode combines the source and destination criteria of ByCriteria.
type MatchMode string

const (
	MatchAND MatchMode = "AND"
	MatchOR  MatchMode = "OR"
)

// FilterOptions control how rule fields are matched against a query.
type FilterOptions struct {
	// IncludeAny makes a rule field of any (and a query of any) match
	// everything. When false only literal token overlap counts, so an
	// operator can tell "rules covering this IP" apart from "rules that
	// allow anything".
	IncludeAny bool
	// UseExtracted prefers the object-resolved Extracted columns when the
	// table carries them.
	UseExtracted bool
}

// DefaultFilterOptions mirror the interactive default: any matches, and
// resolved columns are preferred.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{IncludeAny: true, UseExtracted: true}
}

// Criteria is a combined source/destination query. Empty fields are
// unconstrained.
type Criteria struct {
	Source      string
	Destination string
	Mode        MatchMode
}

// RuleFilter selects rules whose address fields overlap a query
// expression. Zero matches yield an empty table, never an error.
type RuleFilter struct {
	log *slog.Logger
}

func NewRuleFilter(log *slog.Logger) *RuleFilter {
	if log == nil {
		log = slog.Default()
	}
	return &RuleFilter{log: log}
}

// BySource keeps rules whose source field overlaps query.
func (f *RuleFilter) BySource(t *model.Table, query string, opts FilterOptions) (*model.Table, error) {
	idx, err := f.matchIndices(t, model.ColSource, model.ColExtractedSource, query, opts)
	if err != nil {
		return nil, err
	}
	return subTable(t, idx), nil
}

// ByDestination keeps rules whose destination field overlaps query.
func (f *RuleFilter) ByDestination(t *model.Table, query string, opts FilterOptions) (*model.Table, error) {
	idx, err := f.matchIndices(t, model.ColDestination, model.ColExtractedDestination, query, opts)
	if err != nil {
		return nil, err
	}
	return subTable(t, idx), nil
}

// ByEither keeps rules where the source or the destination overlaps query.
func (f *RuleFilter) ByEither(t *model.Table, query string, opts FilterOptions) (*model.Table, error) {
	src, err := f.matchIndices(t, model.ColSource, model.ColExtractedSource, query, opts)
	if err != nil {
		return nil, err
	}
	dst, err := f.matchIndices(t, model.ColDestination, model.ColExtractedDestination, query, opts)
	if err != nil {
		return nil, err
	}
	return subTable(t, unionIndices(src, dst)), nil
}

// ByCriteria applies a combined query. AND keeps rows satisfying both
// criteria; OR keeps rows satisfying at least one, deduplicated by
// original row position. A criteria with neither address set returns a
// copy of the table.
func (f *RuleFilter) ByCriteria(t *model.Table, c Criteria, opts FilterOptions) (*model.Table, error) {
	if t == nil {
		return &model.Table{}, nil
	}
	mode := c.Mode
	if mode == "" {
		mode = MatchAND
	}
	if mode != MatchAND && mode != MatchOR {
		return nil, fmt.Errorf("unknown match mode %q", c.Mode)
	}
	if c.Source == "" && c.Destination == "" {
		return t.Clone(), nil
	}

	var srcIdx, dstIdx []int
	var err error
	if c.Source != "" {
		srcIdx, err = f.matchIndices(t, model.ColSource, model.ColExtractedSource, c.Source, opts)
		if err != nil {
			return nil, err
		}
	}
	if c.Destination != "" {
		dstIdx, err = f.matchIndices(t, model.ColDestination, model.ColExtractedDestination, c.Destination, opts)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case c.Source == "":
		return subTable(t, dstIdx), nil
	case c.Destination == "":
		return subTable(t, srcIdx), nil
	case mode == MatchAND:
		return subTable(t, intersectIndices(srcIdx, dstIdx)), nil
	default:
		return subTable(t, unionIndices(srcIdx, dstIdx)), nil
	}
}

// matchIndices returns the row positions whose field overlaps the query.
func (f *RuleFilter) matchIndices(t *model.Table, rawCol, extractedCol, query string, opts FilterOptions) ([]int, error) {
	if t == nil || t.Len() == 0 {
		return nil, nil
	}
	col := rawCol
	if opts.UseExtracted && t.HasColumn(extractedCol) {
		col = extractedCol
	}
	if !t.HasColumn(col) {
		return nil, fmt.Errorf("table has no %q column", col)
	}

	querySet := policyset.ParseAddressSet(query)
	var matched []int
	for i := range t.Rules {
		ruleSet := policyset.ParseAddressSet(t.Rules[i].Field(col))
		if setsMatch(querySet, ruleSet, opts.IncludeAny) {
			matched = append(matched, i)
		}
	}
	f.log.Debug("address filter pass", "column", col, "query", query, "matched", len(matched), "total", t.Len())
	return matched, nil
}

func setsMatch(query, rule policyset.AddressSet, includeAny bool) bool {
	if includeAny {
		return query.Overlaps(rule)
	}
	if query.IsAny() || rule.IsAny() {
		// Literal matching: any only satisfies any.
		return query.IsAny() && rule.IsAny()
	}
	return query.OverlapsLiteral(rule)
}

func subTable(t *model.Table, indices []int) *model.Table {
	out := &model.Table{Columns: append([]string(nil), t.Columns...)}
	for _, i := range indices {
		out.Rules = append(out.Rules, t.Rules[i].Clone())
	}
	return out
}

// unionIndices merges two ascending index lists, preserving row order.
func unionIndices(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	for _, i := range a {
		seen[i] = true
	}
	for _, i := range b {
		seen[i] = true
	}
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func intersectIndices(a, b []int) []int {
	inB := make(map[int]bool, len(b))
	for _, i := range b {
		inB[i] = true
	}
	var out []int
	for _, i := range a {
		if inB[i] {
			out = append(out, i)
		}
	}
	return out
}
