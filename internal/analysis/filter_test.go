package analysis

import (
	"testing"

	"github.com/hunseop/hoon-firewall-modules/internal/model"
)

func filterFixture() *model.Table {
	return testTable(baseColumns,
		map[string]string{"Rule Name": "A", "Enable": "Y", "Action": "allow", "Source": "10.0.0.0/8", "Destination": "any", "Service": "any"},
		map[string]string{"Rule Name": "B", "Enable": "Y", "Action": "allow", "Source": "10.0.0.5/32", "Destination": "any", "Service": "any"},
		map[string]string{"Rule Name": "C", "Enable": "Y", "Action": "allow", "Source": "any", "Destination": "172.16.0.0/16", "Service": "any"},
	)
}

func ruleNames(t *model.Table) []string {
	names := make([]string, 0, t.Len())
	for i := range t.Rules {
		names = append(names, t.Rules[i].Name)
	}
	return names
}

func TestFilterBySourceLiteralContainment(t *testing.T) {
	result, err := NewRuleFilter(nil).BySource(filterFixture(), "10.0.0.5",
		FilterOptions{IncludeAny: false, UseExtracted: true})
	if err != nil {
		t.Fatalf("expected filter to succeed, got %v", err)
	}
	got := ruleNames(result)
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("expected A (CIDR containment) and B (exact), got %v", got)
	}
}

func TestFilterIncludeAnySemantics(t *testing.T) {
	filter := NewRuleFilter(nil)

	withAny, err := filter.BySource(filterFixture(), "10.0.0.5", FilterOptions{IncludeAny: true})
	if err != nil {
		t.Fatalf("expected filter to succeed, got %v", err)
	}
	got := ruleNames(withAny)
	if len(got) != 3 {
		t.Fatalf("expected the Source=any rule included with IncludeAny, got %v", got)
	}

	withoutAny, err := filter.BySource(filterFixture(), "10.0.0.5", FilterOptions{IncludeAny: false})
	if err != nil {
		t.Fatalf("expected filter to succeed, got %v", err)
	}
	for _, name := range ruleNames(withoutAny) {
		if name == "C" {
			t.Fatal("expected the Source=any rule excluded without IncludeAny")
		}
	}

	anyQuery, err := filter.BySource(filterFixture(), "any", FilterOptions{IncludeAny: true})
	if err != nil {
		t.Fatalf("expected filter to succeed, got %v", err)
	}
	if len(ruleNames(anyQuery)) != 3 {
		t.Fatal("expected an any query with IncludeAny to match every rule")
	}
}

func TestFilterByEither(t *testing.T) {
	result, err := NewRuleFilter(nil).ByEither(filterFixture(), "172.16.1.1",
		FilterOptions{IncludeAny: false, UseExtracted: true})
	if err != nil {
		t.Fatalf("expected filter to succeed, got %v", err)
	}
	got := ruleNames(result)
	if len(got) != 1 || got[0] != "C" {
		t.Fatalf("expected only C via destination overlap, got %v", got)
	}
}

func TestFilterByCriteriaAND(t *testing.T) {
	result, err := NewRuleFilter(nil).ByCriteria(filterFixture(), Criteria{
		Source:      "10.0.0.5",
		Destination: "172.16.1.1",
		Mode:        MatchAND,
	}, FilterOptions{IncludeAny: false, UseExtracted: true})
	if err != nil {
		t.Fatalf("expected filter to succeed, got %v", err)
	}
	if result.Len() != 0 {
		t.Fatalf("expected no rule to satisfy both criteria literally, got %v", ruleNames(result))
	}

	result, err = NewRuleFilter(nil).ByCriteria(filterFixture(), Criteria{
		Source:      "10.0.0.5",
		Destination: "172.16.1.1",
		Mode:        MatchAND,
	}, DefaultFilterOptions())
	if err != nil {
		t.Fatalf("expected filter to succeed, got %v", err)
	}
	got := ruleNames(result)
	// A and B match the destination via any; C matches the source via any.
	if len(got) != 3 {
		t.Fatalf("expected all rules under AND with IncludeAny, got %v", got)
	}
}

func TestFilterByCriteriaOR(t *testing.T) {
	result, err := NewRuleFilter(nil).ByCriteria(filterFixture(), Criteria{
		Source:      "10.0.0.5",
		Destination: "172.16.1.1",
		Mode:        MatchOR,
	}, FilterOptions{IncludeAny: false, UseExtracted: true})
	if err != nil {
		t.Fatalf("expected filter to succeed, got %v", err)
	}
	got := ruleNames(result)
	if len(got) != 3 {
		t.Fatalf("expected union without duplicates, got %v", got)
	}
	if got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Fatalf("expected original row order preserved, got %v", got)
	}
}

func TestFilterEmptyCriteriaReturnsCopy(t *testing.T) {
	fixture := filterFixture()
	result, err := NewRuleFilter(nil).ByCriteria(fixture, Criteria{}, DefaultFilterOptions())
	if err != nil {
		t.Fatalf("expected filter to succeed, got %v", err)
	}
	if result.Len() != fixture.Len() {
		t.Fatalf("expected a full copy, got %d rows", result.Len())
	}
	result.Rules[0].Source = "changed"
	if fixture.Rules[0].Source == "changed" {
		t.Fatal("expected the returned table to be independent of the input")
	}
}

func TestFilterUnknownModeErrors(t *testing.T) {
	_, err := NewRuleFilter(nil).ByCriteria(filterFixture(), Criteria{Source: "10.0.0.5", Mode: "XOR"}, DefaultFilterOptions())
	if err == nil {
		t.Fatal("expected an error for an unknown match mode")
	}
}

func TestFilterMissingColumnErrors(t *testing.T) {
	table := testTable([]string{model.ColRuleName}, map[string]string{"Rule Name": "R1"})
	if _, err := NewRuleFilter(nil).BySource(table, "10.0.0.5", DefaultFilterOptions()); err == nil {
		t.Fatal("expected an error when the Source column is missing")
	}
}

func TestFilterEmptyTable(t *testing.T) {
	result, err := NewRuleFilter(nil).BySource(&model.Table{}, "10.0.0.5", DefaultFilterOptions())
	if err != nil {
		t.Fatalf("expected empty input to succeed, got %v", err)
	}
	if result.Len() != 0 {
		t.Fatalf("expected empty result, got %d rows", result.Len())
	}
}

func TestFilterUsesExtractedColumns(t *testing.T) {
	columns := append(append([]string(nil), baseColumns...), model.ColExtractedSource)
	table := testTable(columns,
		map[string]string{"Rule Name": "R1", "Enable": "Y", "Action": "allow", "Source": "grp-servers", "Destination": "any", "Service": "any",
			"Extracted Source": "10.0.0.0/24"},
	)

	result, err := NewRuleFilter(nil).BySource(table, "10.0.0.5", FilterOptions{IncludeAny: false, UseExtracted: true})
	if err != nil {
		t.Fatalf("expected filter to succeed, got %v", err)
	}
	if result.Len() != 1 {
		t.Fatalf("expected a match via the extracted column, got %d rows", result.Len())
	}

	result, err = NewRuleFilter(nil).BySource(table, "10.0.0.5", FilterOptions{IncludeAny: false, UseExtracted: false})
	if err != nil {
		t.Fatalf("expected filter to succeed, got %v", err)
	}
	if result.Len() != 0 {
		t.Fatalf("expected no match against the raw group name, got %d rows", result.Len())
	}
}
