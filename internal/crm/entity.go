// ABOUTME: In-memory representation of CRM records exchanged with the Web API.
// ABOUTME: Entities are attribute maps addressed by logical name and id.

package crm

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OptionSetValue is an integer option code from a choice column defined by the CRM schema.
type OptionSetValue int

// EntityReference points at another record.
type EntityReference struct {
	LogicalName string
	ID          uuid.UUID
	Name        string
}

// Entity is a schema-typed record. Attribute values are string, time.Time, int,
// float64, OptionSetValue or EntityReference.
type Entity struct {
	LogicalName string
	ID          uuid.UUID
	Attributes  map[string]any
}

// NewEntity creates an empty entity of the given type.
func NewEntity(logicalName string) *Entity {
	return &Entity{LogicalName: logicalName, Attributes: make(map[string]any)}
}

// Set assigns an attribute value.
func (e *Entity) Set(attr string, value any) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[attr] = value
}

// Get returns an attribute value and whether it is present.
func (e *Entity) Get(attr string) (any, bool) {
	v, ok := e.Attributes[attr]
	return v, ok
}

// String returns an attribute formatted as text, or "" when absent.
func (e *Entity) String(attr string) string {
	v, ok := e.Attributes[attr]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case EntityReference:
		return val.Name
	default:
		return fmt.Sprint(val)
	}
}

// Time returns a datetime attribute. Values decoded from the wire arrive as
// RFC 3339 strings and are parsed on access.
func (e *Entity) Time(attr string) (time.Time, bool) {
	switch v := e.Attributes[attr].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// Reference returns a lookup attribute.
func (e *Entity) Reference(attr string) (EntityReference, bool) {
	ref, ok := e.Attributes[attr].(EntityReference)
	return ref, ok
}

// ToEntityReference returns a reference to this entity.
func (e *Entity) ToEntityReference() EntityReference {
	return EntityReference{LogicalName: e.LogicalName, ID: e.ID}
}

// ColumnSet selects which attributes a query or retrieve materializes.
type ColumnSet struct {
	AllColumns bool
	Columns    []string
}

// AllColumns selects every attribute.
func AllColumns() ColumnSet {
	return ColumnSet{AllColumns: true}
}

// Columns selects the named attributes only.
func Columns(cols ...string) ColumnSet {
	return ColumnSet{Columns: cols}
}
