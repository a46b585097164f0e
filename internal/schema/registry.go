// ABOUTME: Registry of CRM entity definitions shared by the Web API client and the fake server.
// ABOUTME: Entity types register themselves in init() functions.

package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Lookup describes a reference attribute and the navigation property used to bind it.
type Lookup struct {
	Attribute  string // "parentcustomerid"
	Target     string // "account"
	Navigation string // "parentcustomerid_account"
}

// Definition describes one entity type of the CRM schema.
type Definition struct {
	LogicalName string // "contact"
	EntitySet   string // "contacts" (URL path segment)
	PrimaryID   string // "contactid"
	PrimaryName string // "fullname"
	Lookups     []Lookup

	// Compute fills server-computed attributes before a record is stored.
	Compute func(attrs map[string]any)
}

// Navigation returns the navigation property that binds attr to a record of type target.
func (d *Definition) Navigation(attr, target string) (string, bool) {
	for _, l := range d.Lookups {
		if l.Attribute == attr && l.Target == target {
			return l.Navigation, true
		}
	}
	return "", false
}

// LookupByNavigation resolves a navigation property back to its lookup.
func (d *Definition) LookupByNavigation(nav string) (Lookup, bool) {
	for _, l := range d.Lookups {
		if l.Navigation == nav {
			return l, true
		}
	}
	return Lookup{}, false
}

var (
	registry = make(map[string]*Definition)
	bySet    = make(map[string]*Definition)
	mu       sync.RWMutex
)

// Register adds an entity definition to the registry
func Register(d *Definition) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := registry[d.LogicalName]; exists {
		panic(fmt.Sprintf("entity %q already registered", d.LogicalName))
	}
	if _, exists := bySet[d.EntitySet]; exists {
		panic(fmt.Sprintf("entity set %q already registered", d.EntitySet))
	}
	registry[d.LogicalName] = d
	bySet[d.EntitySet] = d
}

// Get retrieves a definition by logical name
func Get(logicalName string) (*Definition, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := registry[logicalName]
	return d, ok
}

// BySet retrieves a definition by entity set name
func BySet(entitySet string) (*Definition, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := bySet[entitySet]
	return d, ok
}

// All returns all registered definitions ordered by logical name
func All() []*Definition {
	mu.RLock()
	defer mu.RUnlock()

	defs := make([]*Definition, 0, len(registry))
	for _, d := range registry {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].LogicalName < defs[j].LogicalName })
	return defs
}
