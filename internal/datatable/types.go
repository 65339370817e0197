// Package datatable implements the schema registry, DDL generation, and row
// CRUD for operator-defined tables. A datatable extends one fixed
// application entity (client, loan, group, ...) with either a single row per
// entity instance or many; its definition lives in the physical schema
// itself plus a registry row used for discovery and permission naming.
package datatable

// Registry categories. Survey tables additionally seed a disabled
// feature-toggle configuration row on registration.
const (
	CategoryDefault = 100
	CategorySurvey  = 200
)

// Audit columns appended to every datatable.
const (
	createdAtColumn = "created_at"
	updatedAtColumn = "updated_at"
)

// Registration is one row of the x_registered_table registry.
type Registration struct {
	Name          string `json:"registeredTableName"`
	AppTable      string `json:"applicationTableName"`
	EntitySubType string `json:"entitySubType,omitempty"`
	Category      int    `json:"category"`
}

// ColumnSpec declares one column of a datatable being created or extended.
type ColumnSpec struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Length    int    `json:"length,omitempty"`
	Mandatory bool   `json:"mandatory"`
	Unique    bool   `json:"unique"`
	Indexed   bool   `json:"indexed"`
	// Code names the lookup category backing a dropdown column.
	Code string `json:"code,omitempty"`
}

// CreateRequest declares a new datatable.
type CreateRequest struct {
	Name          string       `json:"datatableName"`
	AppTable      string       `json:"apptableName"`
	EntitySubType string       `json:"entitySubType,omitempty"`
	MultiRow      bool         `json:"multiRow"`
	Category      int          `json:"category,omitempty"`
	Columns       []ColumnSpec `json:"columns"`
}

// ChangeColumnSpec alters one existing column. Nil pointer fields keep the
// column's current state; renaming carries unique/index/code state forward
// under the new name.
type ChangeColumnSpec struct {
	Name      string  `json:"name"`
	NewName   string  `json:"newName,omitempty"`
	Type      string  `json:"type,omitempty"`
	Length    int     `json:"length,omitempty"`
	Mandatory *bool   `json:"mandatory,omitempty"`
	Unique    *bool   `json:"unique,omitempty"`
	Indexed   *bool   `json:"indexed,omitempty"`
	Code      *string `json:"code,omitempty"`
}

// UpdateRequest alters a datatable's shape or re-points it at a different
// application table.
type UpdateRequest struct {
	AppTable      string             `json:"apptableName,omitempty"`
	EntitySubType *string            `json:"entitySubType,omitempty"`
	AddColumns    []ColumnSpec       `json:"addColumns,omitempty"`
	ChangeColumns []ChangeColumnSpec `json:"changeColumns,omitempty"`
	DropColumns   []string           `json:"dropColumns,omitempty"`
}

// Document is a flat row payload: column name to raw string value, the way
// the outer command layer hands it over.
type Document map[string]string
