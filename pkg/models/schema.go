package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SchemaModel is the resolved relational schema a generation run works against.
// It is loaded once per run and never mutated afterwards.
type SchemaModel struct {
	DatabaseName  string               `json:"database_name" yaml:"database_name"`
	Tables        []SchemaTable        `json:"tables" yaml:"tables"`
	Relationships []SchemaRelationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
}

// SchemaTable represents one table of the schema.
type SchemaTable struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Columns     []SchemaColumn `json:"columns" yaml:"columns"`
}

// SchemaColumn represents a table column.
type SchemaColumn struct {
	Name         string `json:"name" yaml:"name"`
	DataType     string `json:"type" yaml:"type"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	IsPrimaryKey bool   `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
}

// SchemaRelationship links a column to the column it references.
type SchemaRelationship struct {
	FromTable  string `json:"from_table" yaml:"from_table"`
	FromColumn string `json:"from_column" yaml:"from_column"`
	ToTable    string `json:"to_table" yaml:"to_table"`
	ToColumn   string `json:"to_column" yaml:"to_column"`
}

// Table looks up a table by name, case-insensitively.
func (s *SchemaModel) Table(name string) (*SchemaTable, bool) {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// TableNames returns the table names sorted alphabetically.
func (s *SchemaModel) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// SortedTables returns a copy of the tables ordered by name.
func (s *SchemaModel) SortedTables() []SchemaTable {
	tables := make([]SchemaTable, len(s.Tables))
	copy(tables, s.Tables)
	sort.SliceStable(tables, func(i, j int) bool {
		return strings.ToLower(tables[i].Name) < strings.ToLower(tables[j].Name)
	})
	return tables
}

// RelationshipsFrom returns the relationships whose source is the given table.
func (s *SchemaModel) RelationshipsFrom(table string) []SchemaRelationship {
	var rels []SchemaRelationship
	for _, r := range s.Relationships {
		if strings.EqualFold(r.FromTable, table) {
			rels = append(rels, r)
		}
	}
	return rels
}

// Column looks up a column by name, case-insensitively.
func (t *SchemaTable) Column(name string) (*SchemaColumn, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Validate checks structural integrity: at least one table, unique non-empty
// table and column names, and relationships that resolve into the table map.
func (s *SchemaModel) Validate() error {
	if len(s.Tables) == 0 {
		return fmt.Errorf("schema has no tables")
	}

	seen := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("schema contains a table without a name")
		}
		key := strings.ToLower(t.Name)
		if seen[key] {
			return fmt.Errorf("table %q is defined more than once", t.Name)
		}
		seen[key] = true

		if len(t.Columns) == 0 {
			return fmt.Errorf("table %q has no columns", t.Name)
		}
		cols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if strings.TrimSpace(c.Name) == "" {
				return fmt.Errorf("table %q contains a column without a name", t.Name)
			}
			ck := strings.ToLower(c.Name)
			if cols[ck] {
				return fmt.Errorf("column %q is defined more than once in table %q", c.Name, t.Name)
			}
			cols[ck] = true
		}
	}

	for _, r := range s.Relationships {
		if err := s.resolve(r.FromTable, r.FromColumn); err != nil {
			return fmt.Errorf("relationship %s.%s -> %s.%s: %w", r.FromTable, r.FromColumn, r.ToTable, r.ToColumn, err)
		}
		if err := s.resolve(r.ToTable, r.ToColumn); err != nil {
			return fmt.Errorf("relationship %s.%s -> %s.%s: %w", r.FromTable, r.FromColumn, r.ToTable, r.ToColumn, err)
		}
	}
	return nil
}

func (s *SchemaModel) resolve(table, column string) error {
	t, ok := s.Table(table)
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	if _, ok := t.Column(column); !ok {
		return fmt.Errorf("unknown column %q in table %q", column, t.Name)
	}
	return nil
}

// Digest returns a stable content hash of the schema. Table and relationship
// order does not affect the digest.
func (s *SchemaModel) Digest() string {
	h := sha256.New()
	fmt.Fprintf(h, "db:%s\n", s.DatabaseName)
	for _, t := range s.SortedTables() {
		fmt.Fprintf(h, "t:%s|%s\n", t.Name, t.Description)
		for _, c := range t.Columns {
			fmt.Fprintf(h, "c:%s|%s|%t|%s\n", c.Name, c.DataType, c.IsPrimaryKey, c.Description)
		}
	}

	rels := make([]string, 0, len(s.Relationships))
	for _, r := range s.Relationships {
		rels = append(rels, fmt.Sprintf("r:%s.%s>%s.%s", r.FromTable, r.FromColumn, r.ToTable, r.ToColumn))
	}
	sort.Strings(rels)
	for _, r := range rels {
		fmt.Fprintln(h, r)
	}
	return hex.EncodeToString(h.Sum(nil))
}
