package parser

import (
	"strings"
	"testing"

	"github.com/hunseop/hoon-firewall-modules/internal/analysis"
	"github.com/hunseop/hoon-firewall-modules/internal/model"
)

const sampleCSV = `Rule Name,Enable,Action,Source,Destination,Service
A,Y,allow,10.0.0.0/24,any,TCP/80
B,N,deny,192.168.1.1,172.16.0.0/16,any
`

func TestLoadTable(t *testing.T) {
	table, err := LoadTable(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	want := []string{"Rule Name", "Enable", "Action", "Source", "Destination", "Service"}
	if len(table.Columns) != len(want) {
		t.Fatalf("expected %d columns, got %v", len(want), table.Columns)
	}
	for i, col := range want {
		if table.Columns[i] != col {
			t.Errorf("column %d: expected %q, got %q", i, col, table.Columns[i])
		}
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 rules, got %d", table.Len())
	}
	if table.Rules[0].Name != "A" || table.Rules[0].Source != "10.0.0.0/24" {
		t.Errorf("unexpected first rule %+v", table.Rules[0])
	}
	if table.Rules[1].Enable != "N" || table.Rules[1].Action != "deny" {
		t.Errorf("unexpected second rule %+v", table.Rules[1])
	}
}

func TestLoadTablePadsShortRecords(t *testing.T) {
	in := "Rule Name,Action,Source\nA,allow\n"
	table, err := LoadTable(strings.NewReader(in))
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if table.Rules[0].Source != "" {
		t.Errorf("expected missing field to read as empty, got %q", table.Rules[0].Source)
	}
}

func TestLoadTableKeepsExtraColumns(t *testing.T) {
	in := "Rule Name,Action,Vsys\nA,allow,vsys1\n"
	table, err := LoadTable(strings.NewReader(in))
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if got := table.Rules[0].Field("Vsys"); got != "vsys1" {
		t.Errorf("expected Vsys carried through, got %q", got)
	}
}

func TestWriteTableRoundTrip(t *testing.T) {
	table, err := LoadTable(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	var buf strings.Builder
	if err := WriteTable(&buf, table); err != nil {
		t.Fatalf("expected write to succeed, got %v", err)
	}
	if buf.String() != sampleCSV {
		t.Errorf("round trip changed the document:\n%s", buf.String())
	}
}

func TestWriteRedundancy(t *testing.T) {
	columns := []string{model.ColRuleName, model.ColAction}
	rows := []analysis.RedundancyRow{
		{No: 1, Type: analysis.Upper, Rule: model.Rule{Name: "A", Action: "allow"}},
		{No: 1, Type: analysis.Lower, Rule: model.Rule{Name: "B", Action: "allow"}},
	}
	var buf strings.Builder
	if err := WriteRedundancy(&buf, columns, rows); err != nil {
		t.Fatalf("expected write to succeed, got %v", err)
	}
	want := "No,Type,Rule Name,Action\n1,Upper,A,allow\n1,Lower,B,allow\n"
	if buf.String() != want {
		t.Errorf("expected:\n%swrote:\n%s", want, buf.String())
	}
}

func TestWriteShadow(t *testing.T) {
	columns := []string{model.ColRuleName}
	rows := []analysis.ShadowRow{
		{
			Rule:    model.Rule{Name: "B"},
			Index:   1,
			Type:    "Shadowed",
			ByIndex: 0,
			ByRule:  "A",
			Reason:  "Rule at index 0 covers this rule completely",
		},
	}
	var buf strings.Builder
	if err := WriteShadow(&buf, columns, rows); err != nil {
		t.Fatalf("expected write to succeed, got %v", err)
	}
	want := "Shadow_Type,Shadow_By_Index,Shadow_By_Rule,Shadow_Reason,Rule Name\n" +
		"Shadowed,0,A,Rule at index 0 covers this rule completely,B\n"
	if buf.String() != want {
		t.Errorf("expected:\n%swrote:\n%s", want, buf.String())
	}
}

func TestWriteChanged(t *testing.T) {
	changed := []analysis.ChangedRule{
		{Name: "X", Changes: []analysis.FieldChange{
			{Column: model.ColAction, Before: "allow", After: "deny"},
		}},
		{Name: "Z", Changes: []analysis.FieldChange{
			{Column: model.ColSource, Before: "any", After: "10.0.0.0/8"},
		}},
	}
	var buf strings.Builder
	if err := WriteChanged(&buf, changed); err != nil {
		t.Fatalf("expected write to succeed, got %v", err)
	}
	want := "Rule Name,Action_before,Action_after,Source_before,Source_after\n" +
		"X,allow,deny,,\n" +
		"Z,,,any,10.0.0.0/8\n"
	if buf.String() != want {
		t.Errorf("expected:\n%swrote:\n%s", want, buf.String())
	}
}

func TestResolveWellKnownServices(t *testing.T) {
	table := &model.Table{
		Columns: []string{model.ColRuleName, model.ColService},
		Rules: []model.Rule{
			{Name: "A", Service: "https"},
			{Name: "B", Service: "dns"},
			{Name: "C", Service: "any"},
			{Name: "D", Service: "tcp/8443,custom-app"},
			{Name: "E", Service: "ssh", ExtractedService: "TCP/2222"},
		},
	}

	ResolveWellKnownServices(table)

	if !table.HasColumn(model.ColExtractedService) {
		t.Fatal("expected Extracted Service column appended")
	}
	cases := map[string]string{
		"A": "TCP/443",
		"B": "TCP/53,UDP/53",
		"C": "any",
		"D": "TCP/8443,custom-app",
		"E": "TCP/2222", // pre-resolved values survive
	}
	for i := range table.Rules {
		rule := &table.Rules[i]
		if got := rule.ExtractedService; got != cases[rule.Name] {
			t.Errorf("rule %s: expected %q, got %q", rule.Name, cases[rule.Name], got)
		}
	}
}

func TestResolveWellKnownServicesNoServiceColumn(t *testing.T) {
	table := &model.Table{
		Columns: []string{model.ColRuleName},
		Rules:   []model.Rule{{Name: "A"}},
	}
	ResolveWellKnownServices(table)
	if table.HasColumn(model.ColExtractedService) {
		t.Error("expected a table without Service left untouched")
	}
}
