package analysis

import (
	"github.com/hunseop/hoon-firewall-modules/internal/model"
)

// testTable builds a rule table from row maps, keeping the given column
// order as evaluation metadata.
func testTable(columns []string, rows ...map[string]string) *model.Table {
	t := &model.Table{Columns: columns}
	for _, row := range rows {
		var rule model.Rule
		for _, col := range columns {
			rule.SetField(col, row[col])
		}
		t.Rules = append(t.Rules, rule)
	}
	return t
}

var baseColumns = []string{
	model.ColRuleName, model.ColEnable, model.ColAction,
	model.ColSource, model.ColDestination, model.ColService,
}
