// Package schema describes the structural roles of the tables dbdoctor
// audits. A Catalog is an explicitly constructed, read-only snapshot of the
// table descriptions; nothing in the tool mutates it after construction.
package schema

import (
	"fmt"
	"iter"
	"strings"
)

// Structural columns every audited table is required to carry. They are part
// of the storage layout itself, not of the per-table role configuration.
const (
	UIDField    = "uid"
	PageIDField = "pid"
)

// Role identifies the logical purpose of a configured field within a table.
type Role int

const (
	RoleSoftDelete Role = iota
	RoleTimestamp
	RoleCreator
	RoleType
	RoleLanguage
	RoleTranslationParent
	RoleWorkspace
)

func (r Role) String() string {
	switch r {
	case RoleSoftDelete:
		return "soft-delete"
	case RoleTimestamp:
		return "timestamp"
	case RoleCreator:
		return "creator"
	case RoleType:
		return "type"
	case RoleLanguage:
		return "language"
	case RoleTranslationParent:
		return "translation-parent"
	case RoleWorkspace:
		return "workspace"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// IncompleteError reports that a table's description lacks a field a check
// needs to evaluate. It aborts the requesting check, not the session.
type IncompleteError struct {
	Table string
	Role  Role
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("schema for table %q does not declare a %s field", e.Table, e.Role)
}

// Table describes one table's structural roles. Zero-valued role fields mean
// the table does not carry that role.
type Table struct {
	Name              string `yaml:"name" validate:"required"`
	SoftDelete        string `yaml:"softDelete"`
	Timestamp         string `yaml:"timestamp"`
	Creator           string `yaml:"creator"`
	Type              string `yaml:"type"`
	Label             string `yaml:"label"`
	LabelAlt          string `yaml:"labelAlt"`
	Language          string `yaml:"language"`
	TranslationParent string `yaml:"translationParent"`
	Workspace         string `yaml:"workspace"`
	VersioningWS      Flag   `yaml:"versioningWS"`
}

func (t Table) field(role Role) string {
	switch role {
	case RoleSoftDelete:
		return t.SoftDelete
	case RoleTimestamp:
		return t.Timestamp
	case RoleCreator:
		return t.Creator
	case RoleType:
		return t.Type
	case RoleLanguage:
		return t.Language
	case RoleTranslationParent:
		return t.TranslationParent
	case RoleWorkspace:
		return t.Workspace
	default:
		return ""
	}
}

// Catalog is the ordered set of table descriptions for one run. Iteration
// order is declaration order and stable for the lifetime of the process.
type Catalog struct {
	tables []Table
	index  map[string]int
}

// NewCatalog builds a catalog from the given table descriptions, preserving
// their order. Duplicate table names are rejected.
func NewCatalog(tables []Table) (*Catalog, error) {
	index := make(map[string]int, len(tables))
	for i, t := range tables {
		if t.Name == "" {
			return nil, fmt.Errorf("catalog entry %d has no table name", i)
		}
		if _, dup := index[t.Name]; dup {
			return nil, fmt.Errorf("catalog declares table %q twice", t.Name)
		}
		index[t.Name] = i
	}
	return &Catalog{tables: tables, index: index}, nil
}

// Lookup returns the description of the named table.
func (c *Catalog) Lookup(table string) (Table, bool) {
	i, ok := c.index[table]
	if !ok {
		return Table{}, false
	}
	return c.tables[i], true
}

// Tables returns all table descriptions in declaration order.
func (c *Catalog) Tables() iter.Seq[Table] {
	return func(yield func(Table) bool) {
		for _, t := range c.tables {
			if !yield(t) {
				return
			}
		}
	}
}

// Field resolves the concrete field name serving the given role on the given
// table. Absence is an ordinary outcome, never an error.
func (c *Catalog) Field(table string, role Role) (string, bool) {
	t, ok := c.Lookup(table)
	if !ok {
		return "", false
	}
	name := t.field(role)
	return name, name != ""
}

// RequireField is the strict variant of Field: it fails with an
// IncompleteError when the role is not configured. Use it only where a
// check's correctness mandates the field exist.
func (c *Catalog) RequireField(table string, role Role) (string, error) {
	name, ok := c.Field(table, role)
	if !ok {
		return "", &IncompleteError{Table: table, Role: role}
	}
	return name, nil
}

// LabelFields resolves the fields that label a record of the given table. The
// primary label comes first, followed by each trimmed, non-empty entry of the
// comma-separated alternate list. The second return value distinguishes "no
// label configured at all" from a configured-but-empty list.
func (c *Catalog) LabelFields(table string) ([]string, bool) {
	t, ok := c.Lookup(table)
	if !ok {
		return nil, false
	}
	if t.Label == "" && t.LabelAlt == "" {
		return nil, false
	}
	var fields []string
	if t.Label != "" {
		fields = append(fields, t.Label)
	}
	for _, alt := range strings.Split(t.LabelAlt, ",") {
		if alt = strings.TrimSpace(alt); alt != "" {
			fields = append(fields, alt)
		}
	}
	return fields, true
}

// WorkspaceEnabledTables enumerates, in declaration order, the tables that
// carry workspace overlay rows: a workspace field is configured and the
// versioning flag is truthy. The sequence re-walks the catalog on every
// iteration.
func (c *Catalog) WorkspaceEnabledTables() iter.Seq[Table] {
	return func(yield func(Table) bool) {
		for _, t := range c.tables {
			if t.Workspace == "" || !bool(t.VersioningWS) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// LanguageAwareTables enumerates, in declaration order, the tables that are
// translatable: both a language field and a translation-parent field are
// configured.
func (c *Catalog) LanguageAwareTables() iter.Seq[Table] {
	return func(yield func(Table) bool) {
		for _, t := range c.tables {
			if t.Language == "" || t.TranslationParent == "" {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}
