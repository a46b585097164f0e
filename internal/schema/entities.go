// ABOUTME: Entity types the loader reads and writes: account, contact, task, appointment,
// ABOUTME: and the custom ljr_servicerequest / ljr_eactvitity tables.

package schema

import "strings"

// Logical names of the entity types used by the loader.
const (
	Account        = "account"
	Contact        = "contact"
	Task           = "task"
	Appointment    = "appointment"
	ServiceRequest = "ljr_servicerequest"
	Activity       = "ljr_eactvitity"
)

func init() {
	Register(&Definition{
		LogicalName: Account,
		EntitySet:   "accounts",
		PrimaryID:   "accountid",
		PrimaryName: "name",
	})

	Register(&Definition{
		LogicalName: Contact,
		EntitySet:   "contacts",
		PrimaryID:   "contactid",
		PrimaryName: "fullname",
		Lookups: []Lookup{
			{Attribute: "parentcustomerid", Target: Account, Navigation: "parentcustomerid_account"},
			{Attribute: "parentcustomerid", Target: Contact, Navigation: "parentcustomerid_contact"},
		},
		Compute: computeFullName,
	})

	Register(&Definition{
		LogicalName: Task,
		EntitySet:   "tasks",
		PrimaryID:   "activityid",
		PrimaryName: "subject",
		Lookups: []Lookup{
			{Attribute: "regardingobjectid", Target: Contact, Navigation: "regardingobjectid_contact_task"},
			{Attribute: "regardingobjectid", Target: Account, Navigation: "regardingobjectid_account_task"},
		},
	})

	Register(&Definition{
		LogicalName: Appointment,
		EntitySet:   "appointments",
		PrimaryID:   "activityid",
		PrimaryName: "subject",
		Lookups: []Lookup{
			{Attribute: "regardingobjectid", Target: Contact, Navigation: "regardingobjectid_contact_appointment"},
			{Attribute: "regardingobjectid", Target: Account, Navigation: "regardingobjectid_account_appointment"},
		},
	})

	Register(&Definition{
		LogicalName: ServiceRequest,
		EntitySet:   "ljr_servicerequests",
		PrimaryID:   "ljr_servicerequestid",
		PrimaryName: "ljr_name",
		Lookups: []Lookup{
			{Attribute: "ljr_customer", Target: Account, Navigation: "ljr_customer"},
		},
	})

	Register(&Definition{
		LogicalName: Activity,
		EntitySet:   "ljr_eactvitities",
		PrimaryID:   "activityid",
		PrimaryName: "ljr_name",
		Lookups: []Lookup{
			{Attribute: "ljr_account", Target: Account, Navigation: "ljr_account"},
		},
	})
}

// computeFullName mirrors the CRM's "First Last" full-name composition.
func computeFullName(attrs map[string]any) {
	first, _ := attrs["firstname"].(string)
	last, _ := attrs["lastname"].(string)
	attrs["fullname"] = strings.TrimSpace(first + " " + last)
}
