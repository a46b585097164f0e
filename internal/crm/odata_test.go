// ABOUTME: Tests for OData entity encoding and decoding.
// ABOUTME: Verifies lookup binds, option set and datetime rendering, and annotated lookup reads.

package crm

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/2389/dataloader/internal/schema"
)

func TestEncodeEntity(t *testing.T) {
	def, _ := schema.Get(schema.Task)
	contactID := uuid.MustParse("6f9619ff-8b86-d011-b42d-00c04fc964ff")
	start := time.Date(2025, 1, 2, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))

	e := NewEntity(schema.Task)
	e.Set("subject", "Call")
	e.Set("prioritycode", OptionSetValue(2))
	e.Set("scheduledstart", start)
	e.Set("regardingobjectid", EntityReference{LogicalName: schema.Contact, ID: contactID})

	body, err := encodeEntity(def, e)
	if err != nil {
		t.Fatalf("encodeEntity() error = %v", err)
	}

	if body["subject"] != "Call" {
		t.Errorf("subject = %v", body["subject"])
	}
	if body["prioritycode"] != 2 {
		t.Errorf("prioritycode = %v (%T), want int 2", body["prioritycode"], body["prioritycode"])
	}
	if body["scheduledstart"] != "2025-01-02T14:30:00Z" {
		t.Errorf("scheduledstart = %v", body["scheduledstart"])
	}
	if got := body["regardingobjectid_contact_task@odata.bind"]; got != "/contacts(6f9619ff-8b86-d011-b42d-00c04fc964ff)" {
		t.Errorf("bind = %v", got)
	}
	if _, ok := body["regardingobjectid"]; ok {
		t.Error("raw lookup attribute should not be sent")
	}
}

func TestEncodeEntity_InvalidReference(t *testing.T) {
	def, _ := schema.Get(schema.ServiceRequest)

	e := NewEntity(schema.ServiceRequest)
	e.Set("ljr_customer", EntityReference{LogicalName: schema.Contact, ID: uuid.New()})

	if _, err := encodeEntity(def, e); err == nil {
		t.Error("expected error binding ljr_customer to a contact")
	}
}

func TestDecodeEntity(t *testing.T) {
	def, _ := schema.Get(schema.Contact)
	id := uuid.New()
	accountID := uuid.New()

	raw := map[string]any{
		"@odata.etag":             `W/"1"`,
		"contactid":               id.String(),
		"fullname":                "Jo Lee",
		"_parentcustomerid_value": accountID.String(),
		"_parentcustomerid_value" + lookupLogicalNameKey: "account",
		"_parentcustomerid_value" + formattedValueKey:    "Acme",
		"_ownerid_value": nil,
	}

	e, err := decodeEntity(def, raw)
	if err != nil {
		t.Fatalf("decodeEntity() error = %v", err)
	}
	if e.ID != id {
		t.Errorf("ID = %s, want %s", e.ID, id)
	}
	if e.String("fullname") != "Jo Lee" {
		t.Errorf("fullname = %q", e.String("fullname"))
	}
	ref, ok := e.Reference("parentcustomerid")
	if !ok {
		t.Fatalf("parentcustomerid missing: %v", e.Attributes)
	}
	if ref.LogicalName != "account" || ref.ID != accountID || ref.Name != "Acme" {
		t.Errorf("ref = %+v", ref)
	}
	if _, ok := e.Get("@odata.etag"); ok {
		t.Error("annotations should be skipped")
	}
	if _, ok := e.Get("ownerid"); ok {
		t.Error("null lookups should be skipped")
	}
}

func TestDecodeEntity_InvalidID(t *testing.T) {
	def, _ := schema.Get(schema.Account)
	if _, err := decodeEntity(def, map[string]any{"accountid": "nope"}); err == nil {
		t.Error("expected error for invalid primary id")
	}
}

func TestParseEntityID(t *testing.T) {
	id := uuid.New()
	got, err := parseEntityID("https://org.crm.dynamics.com/api/data/v9.2/contacts(" + id.String() + ")")
	if err != nil {
		t.Fatalf("parseEntityID() error = %v", err)
	}
	if got != id {
		t.Errorf("parseEntityID() = %s, want %s", got, id)
	}

	if _, err := parseEntityID(""); err == nil {
		t.Error("expected error for empty header")
	}
}
