// ABOUTME: OData JSON encoding of entities for the Web API.
// ABOUTME: Lookups travel as "<nav>@odata.bind" on write and "_<attr>_value" on read.

package crm

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/dataloader/internal/schema"
)

const (
	bindSuffix           = "@odata.bind"
	lookupValuePrefix    = "_"
	lookupValueSuffix    = "_value"
	lookupLogicalNameKey = "@Microsoft.Dynamics.CRM.lookuplogicalname"
	formattedValueKey    = "@OData.Community.Display.V1.FormattedValue"
)

// encodeEntity converts an entity into a Web API request body.
func encodeEntity(def *schema.Definition, e *Entity) (map[string]any, error) {
	body := make(map[string]any, len(e.Attributes))
	for attr, value := range e.Attributes {
		switch v := value.(type) {
		case EntityReference:
			nav, ok := def.Navigation(attr, v.LogicalName)
			if !ok {
				return nil, fmt.Errorf("%s.%s cannot reference %s", def.LogicalName, attr, v.LogicalName)
			}
			target, ok := schema.Get(v.LogicalName)
			if !ok {
				return nil, fmt.Errorf("unknown entity type %q", v.LogicalName)
			}
			body[nav+bindSuffix] = fmt.Sprintf("/%s(%s)", target.EntitySet, v.ID)
		case OptionSetValue:
			body[attr] = int(v)
		case time.Time:
			body[attr] = v.UTC().Format(time.RFC3339)
		default:
			body[attr] = v
		}
	}
	return body, nil
}

// decodeEntity converts a Web API record into an entity.
func decodeEntity(def *schema.Definition, raw map[string]any) (*Entity, error) {
	e := NewEntity(def.LogicalName)

	if idValue, ok := raw[def.PrimaryID].(string); ok {
		id, err := uuid.Parse(idValue)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", def.PrimaryID, idValue, err)
		}
		e.ID = id
	}

	for key, value := range raw {
		if strings.Contains(key, "@") {
			continue
		}

		if strings.HasPrefix(key, lookupValuePrefix) && strings.HasSuffix(key, lookupValueSuffix) {
			attr := strings.TrimSuffix(strings.TrimPrefix(key, lookupValuePrefix), lookupValueSuffix)
			idValue, _ := value.(string)
			if idValue == "" {
				continue
			}
			id, err := uuid.Parse(idValue)
			if err != nil {
				return nil, fmt.Errorf("invalid lookup %s %q: %w", attr, idValue, err)
			}
			target, _ := raw[key+lookupLogicalNameKey].(string)
			name, _ := raw[key+formattedValueKey].(string)
			e.Attributes[attr] = EntityReference{LogicalName: target, ID: id, Name: name}
			continue
		}

		e.Attributes[key] = value
	}

	return e, nil
}

// parseEntityID extracts the id from an OData-EntityId header such as
// "https://org.crm.dynamics.com/api/data/v9.2/contacts(00000000-0000-0000-0000-000000000000)".
func parseEntityID(header string) (uuid.UUID, error) {
	open := strings.LastIndex(header, "(")
	closing := strings.LastIndex(header, ")")
	if open < 0 || closing < open {
		return uuid.Nil, fmt.Errorf("malformed OData-EntityId %q", header)
	}
	return uuid.Parse(header[open+1 : closing])
}
