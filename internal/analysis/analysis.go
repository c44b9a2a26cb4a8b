// Package analysis implements the policy-relationship algorithms:
// redundancy grouping, shadow detection, address-based filtering and
// before/after diffing over in-memory rule tables. All analyses are pure
// and synchronous; they clone what they need and never mutate the caller's
// table.
package analysis

import (
	"strings"

	"github.com/hunseop/hoon-firewall-modules/internal/model"
)

// Progress reports coarse completion of a long-running analysis. It is
// called from the analysis goroutine at roughly 10% intervals; it is not a
// cancellation point.
type Progress func(done, total int)

// isAllow recognizes the permit action across vendor dialects.
func isAllow(action string) bool {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "allow", "accept", "permit":
		return true
	}
	return false
}

// effectiveField prefers the object-resolved Extracted column when the
// table carries it, falling back to the raw column.
func effectiveField(t *model.Table, r *model.Rule, extracted, raw string) string {
	if t.HasColumn(extracted) {
		return r.Field(extracted)
	}
	return r.Field(raw)
}

// rowEnabled treats a table without an Enable column as all-enabled.
func rowEnabled(t *model.Table, r *model.Rule) bool {
	if !t.HasColumn(model.ColEnable) {
		return true
	}
	return r.Enabled()
}
