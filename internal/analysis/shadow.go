package analysis

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hunseop/hoon-firewall-modules/internal/model"
	"github.com/hunseop/hoon-firewall-modules/internal/policyset"
)

// ShadowRow records that a rule is fully covered by an earlier rule and can
// never match traffic. Index and ByIndex refer to positions within the
// enabled-only view of the table (dense, starting at 0).
type ShadowRow struct {
	Rule    model.Rule
	Index   int
	Type    string // always "Shadowed"
	ByIndex int
	ByRule  string
	Reason  string
}

// ShadowOptions carries the optional knobs of a shadow run.
type ShadowOptions struct {
	// Progress, when set, is invoked at coarse intervals of the outer
	// scan. There is no cancellation; a started analysis runs to
	// completion.
	Progress Progress
}

// ShadowDetector finds rules whose effect is subsumed by an earlier rule.
// The scan is O(n²) over enabled rules; first-match-wins ordering requires
// reporting the earliest covering rule, so each rule is checked against
// every predecessor until one covers it.
type ShadowDetector struct {
	log *slog.Logger
}

func NewShadowDetector(log *slog.Logger) *ShadowDetector {
	if log == nil {
		log = slog.Default()
	}
	return &ShadowDetector{log: log}
}

// normRule is the precomputed comparison view of one enabled rule.
type normRule struct {
	rule   model.Rule
	action string
	src    policyset.AddressSet
	dst    policyset.AddressSet
	svc    policyset.ServiceSet
	app    string
	user   string
}

// Analyze scans t in evaluation order and reports, for each shadowed rule,
// the earliest earlier rule covering it. A rule gets at most one ShadowRow.
func (d *ShadowDetector) Analyze(t *model.Table, vendor model.Vendor, opts *ShadowOptions) ([]ShadowRow, error) {
	if t == nil || t.Len() == 0 {
		return nil, nil
	}
	if opts == nil {
		opts = &ShadowOptions{}
	}

	hasApp := t.HasColumn(model.ColApplication)
	hasUser := t.HasColumn(model.ColUser)

	// Enabled rules only, original relative order, dense indexes.
	var prepared []normRule
	for i := range t.Rules {
		rule := &t.Rules[i]
		if !rowEnabled(t, rule) {
			continue
		}
		prepared = append(prepared, normRule{
			rule:   rule.Clone(),
			action: strings.ToLower(strings.TrimSpace(rule.Action)),
			src:    policyset.ParseAddressSet(effectiveField(t, rule, model.ColExtractedSource, model.ColSource)),
			dst:    policyset.ParseAddressSet(effectiveField(t, rule, model.ColExtractedDestination, model.ColDestination)),
			svc:    policyset.ParseServiceSet(effectiveField(t, rule, model.ColExtractedService, model.ColService)),
			app:    normConstraint(rule.Application),
			user:   normConstraint(rule.User),
		})
	}
	total := len(prepared)
	if total == 0 {
		d.log.Warn("no enabled rules to analyze for shadowing")
		return nil, nil
	}

	step := total / 10
	if step < 1 {
		step = 1
	}

	var results []ShadowRow
	for i := 0; i < total; i++ {
		if opts.Progress != nil && (i%step == 0 || i == total-1) {
			opts.Progress(i+1, total)
		}
		for j := 0; j < i; j++ {
			if !shadowedBy(&prepared[i], &prepared[j], hasApp, hasUser) {
				continue
			}
			results = append(results, ShadowRow{
				Rule:    prepared[i].rule,
				Index:   i,
				Type:    "Shadowed",
				ByIndex: j,
				ByRule:  prepared[j].rule.Name,
				Reason:  fmt.Sprintf("Rule at index %d covers this rule completely", j),
			})
			break // earliest covering rule wins
		}
	}
	d.log.Info("shadow analysis complete", "vendor", string(vendor), "rules", total, "shadowed", len(results))
	return results, nil
}

// shadowedBy reports whether later is fully covered by earlier: same
// action, source/destination/service containment, and non-conflicting
// Application and User constraints where the table carries them.
func shadowedBy(later, earlier *normRule, hasApp, hasUser bool) bool {
	if later.action != earlier.action {
		return false
	}
	if !later.src.SubsetOf(earlier.src) {
		return false
	}
	if !later.dst.SubsetOf(earlier.dst) {
		return false
	}
	if !later.svc.SubsetOf(earlier.svc) {
		return false
	}
	if hasApp && !constraintCovers(earlier.app, later.app) {
		return false
	}
	if hasUser && !constraintCovers(earlier.user, later.user) {
		return false
	}
	return true
}

// Application and User are single-token constraints, not comma lists.
func normConstraint(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "any"
	}
	return v
}

func constraintCovers(earlier, later string) bool {
	return earlier == "any" || earlier == later
}
