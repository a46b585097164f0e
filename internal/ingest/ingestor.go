// ABOUTME: Seeds demo records: picks an existing account and creates contacts with their
// ABOUTME: tasks, appointments, service requests, and e-activities under it.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/2389/dataloader/internal/crm"
	"github.com/2389/dataloader/internal/mockdata"
	"github.com/2389/dataloader/internal/schema"
	"github.com/2389/dataloader/internal/seed"
)

var (
	// ErrNotReady is returned when a connection cannot be established.
	ErrNotReady = crm.ErrNotReady
	// ErrNoAccounts is returned when the CRM holds no account to attach records to.
	ErrNoAccounts = errors.New("no accounts available")
)

// Records created per contact in the extended variant.
const (
	ServiceRequestsPerContact = 5
	ActivitiesPerContact      = 5
)

const (
	userStory       = "As a Data Anaylst I need to be able to work with the data in a fast manner SO i can get this done."
	activityTTL     = 86400
	taskStartOffset = 24 * time.Hour
)

// FailurePolicy controls what happens when creating a record fails.
type FailurePolicy string

const (
	// Abort stops the run at the first failure.
	Abort FailurePolicy = "abort"
	// Continue records the failure and moves on. A failed contact skips its dependents.
	Continue FailurePolicy = "continue"
)

// ParseFailurePolicy accepts "abort" or "continue"; empty means Abort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Abort:
		return Abort, nil
	case Continue:
		return Continue, nil
	}
	return "", fmt.Errorf("invalid failure policy %q (want abort or continue)", s)
}

// Options configures an Ingestor.
type Options struct {
	// MockDir holds contacts1.csv and accounts1.csv. Empty skips mock loading.
	MockDir  string
	Count    int
	Extended bool
	Policy   FailurePolicy

	// Faker is the single random source. Nil means an unseeded one.
	Faker *gofakeit.Faker
	// Now is the clock. Nil means time.Now.
	Now func() time.Time
	// Seed configures the fallback contact source when no mock contacts load.
	Seed seed.Options
}

// Failure is one record that could not be created under the Continue policy.
type Failure struct {
	Step    string
	Contact string
	Err     error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s for %s: %v", f.Step, f.Contact, f.Err)
}

// Summary reports what a run created.
type Summary struct {
	Account         crm.EntityReference
	Contacts        int
	Tasks           int
	Appointments    int
	ServiceRequests int
	Activities      int
	Failures        []Failure
	Elapsed         time.Duration
	// Source is where contact names came from when the run ended.
	Source string
}

// Ingestor runs one demo-data load.
type Ingestor struct {
	connect  Connector
	opts     Options
	faker    *gofakeit.Faker
	now      func() time.Time
	contacts *seed.Generator
}

// New creates an Ingestor.
func New(connect Connector, opts Options) *Ingestor {
	if opts.Count < 0 {
		opts.Count = 0
	}
	if opts.Policy == "" {
		opts.Policy = Abort
	}
	in := &Ingestor{connect: connect, opts: opts, faker: opts.Faker, now: opts.Now}
	if in.faker == nil {
		in.faker = gofakeit.New(0)
	}
	if in.now == nil {
		in.now = time.Now
	}
	return in
}

// Execute loads mock data, picks a random account, and creates Count contacts
// with their dependents under it.
func (in *Ingestor) Execute(ctx context.Context) (*Summary, error) {
	log.Println("Demo data load is running")

	seedOpts := in.opts.Seed
	if in.opts.MockDir != "" {
		set, err := mockdata.Load(in.opts.MockDir)
		if err != nil {
			return nil, fmt.Errorf("load mock data: %w", err)
		}
		log.Printf("Loaded %d mock contacts and %d mock accounts from %s", len(set.Contacts), len(set.Accounts), in.opts.MockDir)
		seedOpts.Mock = set.Contacts
	}
	in.contacts = seed.NewGenerator(in.faker, seedOpts)

	account, err := in.PickRandomAccount(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("Random account: %s", account.String("name"))

	return in.GenerateContacts(ctx, account, in.opts.Count)
}

// PickRandomAccount queries every account and returns one chosen uniformly.
func (in *Ingestor) PickRandomAccount(ctx context.Context) (*crm.Entity, error) {
	svc, err := in.open(ctx)
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	accounts, err := svc.Query(ctx, schema.Account, crm.AllColumns())
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	return accounts[in.faker.Number(0, len(accounts)-1)], nil
}

// GenerateContacts creates count contacts under account. Each contact gets a
// task and an appointment, plus service requests and activities when the
// ingestor is extended.
func (in *Ingestor) GenerateContacts(ctx context.Context, account *crm.Entity, count int) (*Summary, error) {
	start := time.Now()
	accountRef := account.ToEntityReference()
	accountRef.Name = account.String("name")
	summary := &Summary{Account: accountRef}

	if in.contacts == nil {
		in.contacts = seed.NewGenerator(in.faker, in.opts.Seed)
	}

	svc, err := in.open(ctx)
	if err != nil {
		return summary, err
	}
	defer svc.Close()

	log.Printf("Adding %d contacts to account: %s", count, accountRef.Name)
	for i := 0; i < count; i++ {
		err := ctx.Err()
		if err == nil {
			err = in.generateContact(ctx, svc, summary, accountRef)
		}
		if err != nil {
			summary.Elapsed = time.Since(start)
			summary.Source = in.contacts.Source()
			return summary, err
		}
	}

	summary.Elapsed = time.Since(start)
	summary.Source = in.contacts.Source()
	log.Printf("Demo data load took %d milliseconds", summary.Elapsed.Milliseconds())
	return summary, nil
}

// generateContact creates one contact and its dependents. A non-nil error
// aborts the run.
func (in *Ingestor) generateContact(ctx context.Context, svc Service, summary *Summary, account crm.EntityReference) error {
	now := in.now()
	data := in.contacts.Contact(ctx)
	label := strings.TrimSpace(data.FirstName + " " + data.LastName)

	contact := crm.NewEntity(schema.Contact)
	contact.Set("firstname", data.FirstName)
	contact.Set("lastname", data.LastName)
	contact.Set("emailaddress1", data.Email)
	contact.Set("parentcustomerid", account)

	// A contact that cannot be created or read back has no dependents
	id, err := svc.Create(ctx, contact)
	if err != nil {
		return in.fail(summary, "create contact", label, err)
	}
	summary.Contacts++

	fullName, err := in.refetchContact(ctx, svc, id)
	if err != nil {
		return in.fail(summary, "refetch contact", label, err)
	}
	log.Printf("  ✓ Added contact: %s", fullName)

	contactRef := crm.EntityReference{LogicalName: schema.Contact, ID: id, Name: fullName}

	task := scheduled(schema.Task, "Follow up with "+fullName, contactRef, now.Add(taskStartOffset), now.Add(2*taskStartOffset))
	if _, err := svc.Create(ctx, task); err != nil {
		if err := in.fail(summary, "create task", fullName, err); err != nil {
			return err
		}
	} else {
		summary.Tasks++
	}

	appt := scheduled(schema.Appointment, "Meeting with "+fullName, contactRef, now.Add(3*taskStartOffset), now.Add(4*taskStartOffset))
	if _, err := svc.Create(ctx, appt); err != nil {
		if err := in.fail(summary, "create appointment", fullName, err); err != nil {
			return err
		}
	} else {
		summary.Appointments++
	}

	if !in.opts.Extended {
		return nil
	}

	for x := 0; x < ServiceRequestsPerContact; x++ {
		req := crm.NewEntity(schema.ServiceRequest)
		req.Set("ljr_name", "Service Request for "+fullName)
		req.Set("ljr_userstory", userStory)
		req.Set("ljr_customer", account)
		if _, err := svc.Create(ctx, req); err != nil {
			if err := in.fail(summary, "create service request", fullName, err); err != nil {
				return err
			}
			continue
		}
		summary.ServiceRequests++
	}

	payload, err := ActivityPayload(fullName, account.Name)
	if err != nil {
		return in.fail(summary, "encode activity payload", fullName, err)
	}
	for x := 0; x < ActivitiesPerContact; x++ {
		act := crm.NewEntity(schema.Activity)
		act.Set("ljr_name", "Activity for "+fullName)
		act.Set("ljr_json", payload)
		act.Set("ljr_account", account)
		act.Set("ttlinseconds", activityTTL)
		if _, err := svc.Create(ctx, act); err != nil {
			if err := in.fail(summary, "create activity", fullName, err); err != nil {
				return err
			}
			continue
		}
		summary.Activities++
	}
	log.Printf("  ✓ Added %d service requests and %d activities for %s", ServiceRequestsPerContact, ActivitiesPerContact, fullName)

	return nil
}

// refetchContact reads back the contact to pick up the server-computed fullname.
func (in *Ingestor) refetchContact(ctx context.Context, svc Service, id uuid.UUID) (string, error) {
	contact, err := svc.Retrieve(ctx, schema.Contact, id, crm.AllColumns())
	if err != nil {
		return "", err
	}
	fullName := contact.String("fullname")
	if fullName == "" {
		return "", fmt.Errorf("contact %s has no fullname", id)
	}
	return fullName, nil
}

// fail applies the failure policy. Under Abort it returns the wrapped error;
// under Continue it records the failure and returns nil.
func (in *Ingestor) fail(summary *Summary, step, contact string, err error) error {
	if in.opts.Policy == Continue {
		log.Printf("  ✗ %s for %s: %v", step, contact, err)
		summary.Failures = append(summary.Failures, Failure{Step: step, Contact: contact, Err: err})
		return nil
	}
	return fmt.Errorf("%s for %s: %w", step, contact, err)
}

func (in *Ingestor) open(ctx context.Context) (Service, error) {
	svc, err := in.connect(ctx)
	if err != nil {
		if errors.Is(err, ErrNotReady) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if !svc.Ready() {
		svc.Close()
		return nil, ErrNotReady
	}
	return svc, nil
}

func scheduled(logicalName, subject string, regarding crm.EntityReference, start, end time.Time) *crm.Entity {
	e := crm.NewEntity(logicalName)
	e.Set("subject", subject)
	e.Set("description", subject)
	e.Set("scheduledstart", start)
	e.Set("scheduledend", end)
	e.Set("regardingobjectid", regarding)
	return e
}
