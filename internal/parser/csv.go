// Package parser loads and stores rule tables. The analyses only consume
// in-memory tables; everything file- or database-shaped lives here.
package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/hunseop/hoon-firewall-modules/internal/analysis"
	"github.com/hunseop/hoon-firewall-modules/internal/model"
)

// LoadTable reads a rule table from CSV. The header row defines the
// columns; column and row order are preserved exactly. Short records are
// padded with empty fields.
func LoadTable(r io.Reader) (*model.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read header: %w", err)
	}

	t := &model.Table{Columns: append([]string(nil), header...)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		var rule model.Rule
		for i, col := range header {
			if i < len(record) {
				rule.SetField(col, record[i])
			}
		}
		t.Rules = append(t.Rules, rule)
	}
	return t, nil
}

// WriteTable writes a rule table as CSV with its column order intact.
func WriteTable(w io.Writer, t *model.Table) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	for i := range t.Rules {
		record := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			record[j] = t.Rules[i].Field(col)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteRedundancy writes redundancy rows with the group columns first,
// followed by the original table columns.
func WriteRedundancy(w io.Writer, columns []string, rows []analysis.RedundancyRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := append([]string{"No", "Type"}, columns...)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, 0, len(header))
		record = append(record, strconv.Itoa(row.No), string(row.Type))
		for _, col := range columns {
			record = append(record, row.Rule.Field(col))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteShadow writes shadow rows with the shadow columns first.
func WriteShadow(w io.Writer, columns []string, rows []analysis.ShadowRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := append([]string{"Shadow_Type", "Shadow_By_Index", "Shadow_By_Rule", "Shadow_Reason"}, columns...)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, 0, len(header))
		record = append(record, row.Type, strconv.Itoa(row.ByIndex), row.ByRule, row.Reason)
		for _, col := range columns {
			record = append(record, row.Rule.Field(col))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteChanged writes the changed records of a diff. The header carries
// Rule Name plus a _before/_after pair for every column that changed in at
// least one rule; records leave untouched columns blank.
func WriteChanged(w io.Writer, changed []analysis.ChangedRule) error {
	var changedCols []string
	seen := make(map[string]bool)
	for _, c := range changed {
		for _, fc := range c.Changes {
			if !seen[fc.Column] {
				seen[fc.Column] = true
				changedCols = append(changedCols, fc.Column)
			}
		}
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{model.ColRuleName}
	for _, col := range changedCols {
		header = append(header, col+"_before", col+"_after")
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, c := range changed {
		byCol := make(map[string]analysis.FieldChange, len(c.Changes))
		for _, fc := range c.Changes {
			byCol[fc.Column] = fc
		}
		record := []string{c.Name}
		for _, col := range changedCols {
			fc, ok := byCol[col]
			if !ok {
				record = append(record, "", "")
				continue
			}
			record = append(record, fc.Before, fc.After)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
