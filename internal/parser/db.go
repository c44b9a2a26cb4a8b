package parser

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/hunseop/hoon-firewall-modules/internal/model"
)

// dbColumnNames maps policy_export column names to the logical table
// columns. Anything not listed passes through as a vendor extra column
// under its database name.
var dbColumnNames = map[string]string{
	"rule_name":             model.ColRuleName,
	"enable":                model.ColEnable,
	"action":                model.ColAction,
	"source":                model.ColSource,
	"destination":           model.ColDestination,
	"service":               model.ColService,
	"extracted_source":      model.ColExtractedSource,
	"extracted_destination": model.ColExtractedDestination,
	"extracted_service":     model.ColExtractedService,
	"application":           model.ColApplication,
	"user_name":             model.ColUser,
	"seq":                   "Seq",
}

// MariaDBProvider reads rule tables that the collection pipeline has
// exported into a policy_export table.
type MariaDBProvider struct {
	db *sql.DB
}

func NewMariaDBProvider(dsn string) (*MariaDBProvider, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &MariaDBProvider{db: db}, nil
}

func (p *MariaDBProvider) Close() error {
	return p.db.Close()
}

// LoadTable reads the export in evaluation order (seq ascending). A
// non-empty device restricts the query to one firewall's rule set.
func (p *MariaDBProvider) LoadTable(device string) (*model.Table, error) {
	query := "SELECT * FROM policy_export"
	var args []any
	if device != "" {
		query += " WHERE device_name = ?"
		args = append(args, device)
	}
	query += " ORDER BY seq ASC"

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query policy_export: %w", err)
	}
	defer rows.Close()

	dbCols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(dbCols))
	for _, dbCol := range dbCols {
		if dbCol == "id" || dbCol == "device_name" {
			continue
		}
		if logical, ok := dbColumnNames[dbCol]; ok {
			columns = append(columns, logical)
		} else {
			columns = append(columns, dbCol)
		}
	}

	t := &model.Table{Columns: columns}
	values := make([]sql.NullString, len(dbCols))
	dest := make([]any, len(dbCols))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		var rule model.Rule
		for i, dbCol := range dbCols {
			if dbCol == "id" || dbCol == "device_name" {
				continue
			}
			logical, ok := dbColumnNames[dbCol]
			if !ok {
				logical = dbCol
			}
			if values[i].Valid {
				rule.SetField(logical, values[i].String)
			}
		}
		t.Rules = append(t.Rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}
