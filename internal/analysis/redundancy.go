package analysis

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hunseop/hoon-firewall-modules/internal/config"
	"github.com/hunseop/hoon-firewall-modules/internal/model"
)

type RedundancyType string

const (
	Upper RedundancyType = "Upper" // first rule of a group in evaluation order
	Lower RedundancyType = "Lower" // later rule with identical effective fields
)

// RedundancyRow is one rule annotated with its redundancy group.
type RedundancyRow struct {
	No   int
	Type RedundancyType
	Rule model.Rule
}

// RedundancyDetector groups enabled allow rules whose normalized
// comparison columns are identical. Grouping is a single hash pass over
// the table, not a pairwise scan.
type RedundancyDetector struct {
	profiles *config.Registry
	log      *slog.Logger
}

func NewRedundancyDetector(profiles *config.Registry, log *slog.Logger) *RedundancyDetector {
	if profiles == nil {
		profiles = config.NewRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedundancyDetector{profiles: profiles, log: log}
}

// Analyze returns the redundancy groups of t, each with its Upper rule
// first followed by its Lowers in evaluation order. Groups are numbered
// densely from 1.
func (d *RedundancyDetector) Analyze(t *model.Table, vendor model.Vendor) ([]RedundancyRow, error) {
	if t == nil || t.Len() == 0 {
		return nil, nil
	}
	if !t.HasColumn(model.ColEnable) || !t.HasColumn(model.ColAction) {
		return nil, fmt.Errorf("redundancy analysis requires %q and %q columns", model.ColEnable, model.ColAction)
	}

	profile := d.profiles.Profile(vendor)
	columns := profile.Columns
	if t.HasColumn(model.ColExtractedSource) {
		columns = profile.ExtractedColumns
	}

	type group struct {
		no   int
		rows []RedundancyRow
	}
	byKey := make(map[string]*group)
	var groups []*group

	for i := range t.Rules {
		rule := &t.Rules[i]
		if !rule.Enabled() || !isAllow(rule.Action) {
			continue
		}
		out := rule.Clone()
		if profile.ServiceUnderscoreToDash {
			out.Service = strings.ReplaceAll(out.Service, "_", "-")
		}
		key := comparisonKey(&out, columns)
		g, ok := byKey[key]
		if !ok {
			g = &group{}
			byKey[key] = g
			groups = append(groups, g)
			g.rows = append(g.rows, RedundancyRow{Type: Upper, Rule: out})
			continue
		}
		g.rows = append(g.rows, RedundancyRow{Type: Lower, Rule: out})
	}

	// A group of one is not redundant. Renumber the survivors densely.
	var results []RedundancyRow
	no := 0
	for _, g := range groups {
		if len(g.rows) < 2 {
			continue
		}
		no++
		for _, row := range g.rows {
			row.No = no
			results = append(results, row)
		}
	}
	d.log.Info("redundancy analysis complete", "vendor", string(vendor), "groups", no, "rows", len(results))
	return results, nil
}

// comparisonKey builds the normalized tuple of the comparison columns.
// Comma-list fields are token-sorted so member order never splits a group.
func comparisonKey(r *model.Rule, columns []string) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, normalizeListField(r.Field(col)))
	}
	return strings.Join(parts, "\x1f")
}

func normalizeListField(v string) string {
	if !strings.Contains(v, ",") {
		return v
	}
	tokens := strings.Split(v, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}
	sort.Strings(tokens)
	return strings.Join(tokens, ",")
}
