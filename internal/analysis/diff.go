package analysis

import (
	"fmt"

	"github.com/hunseop/hoon-firewall-modules/internal/model"
)

// FieldChange is one column whose value differs between versions.
type FieldChange struct {
	Column string
	Before string
	After  string
}

// ChangedRule lists only the columns that actually changed for one rule.
type ChangedRule struct {
	Name    string
	Changes []FieldChange
}

// ChangeSet is the result of diffing two rule tables keyed by Rule Name.
type ChangeSet struct {
	Added   []model.Rule // present only in after
	Removed []model.Rule // present only in before
	Changed []ChangedRule
}

// diffIgnoredColumns never participate in change detection. Seq is a
// row-counter column some exports carry; it changes on every reorder.
var diffIgnoredColumns = map[string]bool{"Seq": true}

// Diff performs a full outer join of before and after on Rule Name and
// classifies every rule as added, removed, changed or (silently) unchanged.
// A table without a Rule Name column is a usage error and fails fast.
func Diff(before, after *model.Table) (*ChangeSet, error) {
	if before == nil || after == nil {
		return nil, fmt.Errorf("diff requires two tables")
	}
	if !before.HasColumn(model.ColRuleName) {
		return nil, fmt.Errorf("before table has no %q column", model.ColRuleName)
	}
	if !after.HasColumn(model.ColRuleName) {
		return nil, fmt.Errorf("after table has no %q column", model.ColRuleName)
	}

	shared := sharedColumns(before, after)

	afterByName := make(map[string]*model.Rule, after.Len())
	for i := range after.Rules {
		afterByName[after.Rules[i].Name] = &after.Rules[i]
	}
	beforeNames := make(map[string]bool, before.Len())

	cs := &ChangeSet{}
	for i := range before.Rules {
		b := &before.Rules[i]
		beforeNames[b.Name] = true
		a, ok := afterByName[b.Name]
		if !ok {
			cs.Removed = append(cs.Removed, b.Clone())
			continue
		}
		var changes []FieldChange
		for _, col := range shared {
			bv, av := b.Field(col), a.Field(col)
			if bv != av {
				changes = append(changes, FieldChange{Column: col, Before: bv, After: av})
			}
		}
		if len(changes) > 0 {
			cs.Changed = append(cs.Changed, ChangedRule{Name: b.Name, Changes: changes})
		}
	}
	for i := range after.Rules {
		a := &after.Rules[i]
		if !beforeNames[a.Name] {
			cs.Added = append(cs.Added, a.Clone())
		}
	}
	return cs, nil
}

// sharedColumns returns the columns present in both tables, in the before
// table's order, minus the join key and ignored columns.
func sharedColumns(before, after *model.Table) []string {
	var out []string
	for _, col := range before.Columns {
		if col == model.ColRuleName || diffIgnoredColumns[col] {
			continue
		}
		if after.HasColumn(col) {
			out = append(out, col)
		}
	}
	return out
}
