// ABOUTME: Tests for the ingestor against an in-memory service.
// ABOUTME: Covers record counts, schedule windows, failure policies, and connection handling.

package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/2389/dataloader/internal/crm"
	"github.com/2389/dataloader/internal/mockdata"
	"github.com/2389/dataloader/internal/schema"
	"github.com/2389/dataloader/internal/seed"
)

type memoryService struct {
	ready    bool
	accounts []*crm.Entity
	created  []*crm.Entity
	records  map[uuid.UUID]*crm.Entity
	failOn   map[string]error
	closed   int
}

func newMemoryService(accounts ...*crm.Entity) *memoryService {
	return &memoryService{ready: true, accounts: accounts, records: map[uuid.UUID]*crm.Entity{}, failOn: map[string]error{}}
}

func (m *memoryService) Ready() bool { return m.ready }

func (m *memoryService) Query(ctx context.Context, logicalName string, cols crm.ColumnSet) ([]*crm.Entity, error) {
	if err := m.failOn["query"]; err != nil {
		return nil, err
	}
	return m.accounts, nil
}

func (m *memoryService) Create(ctx context.Context, e *crm.Entity) (uuid.UUID, error) {
	if err := m.failOn[e.LogicalName]; err != nil {
		return uuid.Nil, err
	}
	e.ID = uuid.New()
	m.created = append(m.created, e)
	m.records[e.ID] = e
	return e.ID, nil
}

func (m *memoryService) Retrieve(ctx context.Context, logicalName string, id uuid.UUID, cols crm.ColumnSet) (*crm.Entity, error) {
	if err := m.failOn["retrieve"]; err != nil {
		return nil, err
	}
	e, ok := m.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	out := crm.NewEntity(logicalName)
	out.ID = id
	for k, v := range e.Attributes {
		out.Set(k, v)
	}
	if def, _ := schema.Get(logicalName); def.Compute != nil {
		def.Compute(out.Attributes)
	}
	return out, nil
}

func (m *memoryService) Close() error {
	m.closed++
	return nil
}

func (m *memoryService) count(logicalName string) int {
	n := 0
	for _, e := range m.created {
		if e.LogicalName == logicalName {
			n++
		}
	}
	return n
}

func (m *memoryService) connector() Connector {
	return func(ctx context.Context) (Service, error) { return m, nil }
}

func testAccount(name string) *crm.Entity {
	a := crm.NewEntity(schema.Account)
	a.ID = uuid.New()
	a.Set("name", name)
	return a
}

var fixedNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestIngestor(svc *memoryService, opts Options) *Ingestor {
	opts.Faker = gofakeit.New(11)
	opts.Now = func() time.Time { return fixedNow }
	return New(svc.connector(), opts)
}

func TestGenerateContacts_Counts(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		extended bool
	}{
		{"basic", 3, false},
		{"extended", 4, true},
		{"zero", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := testAccount("Acme")
			svc := newMemoryService(account)
			in := newTestIngestor(svc, Options{Extended: tt.extended})

			summary, err := in.GenerateContacts(context.Background(), account, tt.count)
			if err != nil {
				t.Fatalf("GenerateContacts() error = %v", err)
			}

			extra := 0
			if tt.extended {
				extra = 5 * tt.count
			}
			checks := []struct {
				entity  string
				created int
				summary int
				want    int
			}{
				{schema.Contact, svc.count(schema.Contact), summary.Contacts, tt.count},
				{schema.Task, svc.count(schema.Task), summary.Tasks, tt.count},
				{schema.Appointment, svc.count(schema.Appointment), summary.Appointments, tt.count},
				{schema.ServiceRequest, svc.count(schema.ServiceRequest), summary.ServiceRequests, extra},
				{schema.Activity, svc.count(schema.Activity), summary.Activities, extra},
			}
			for _, c := range checks {
				if c.created != c.want || c.summary != c.want {
					t.Errorf("%s: created %d, summary %d, want %d", c.entity, c.created, c.summary, c.want)
				}
			}
			if svc.closed != 1 {
				t.Errorf("Close() called %d times, want 1", svc.closed)
			}
		})
	}
}

func TestGenerateContacts_RecordShapes(t *testing.T) {
	account := testAccount("Acme")
	svc := newMemoryService(account)
	in := newTestIngestor(svc, Options{Extended: true})

	if _, err := in.GenerateContacts(context.Background(), account, 1); err != nil {
		t.Fatalf("GenerateContacts() error = %v", err)
	}

	var contactID uuid.UUID
	var fullName string
	for _, e := range svc.created {
		if e.LogicalName == schema.Contact {
			contactID = e.ID
			fullName = strings.TrimSpace(e.String("firstname") + " " + e.String("lastname"))
			ref, _ := e.Reference("parentcustomerid")
			if ref.ID != account.ID || ref.LogicalName != schema.Account {
				t.Errorf("parentcustomerid = %+v, want account %s", ref, account.ID)
			}
		}
	}

	for _, e := range svc.created {
		switch e.LogicalName {
		case schema.Task, schema.Appointment:
			start, _ := e.Time("scheduledstart")
			end, _ := e.Time("scheduledend")
			offset := 1
			if e.LogicalName == schema.Appointment {
				offset = 3
			}
			if !start.Equal(fixedNow.AddDate(0, 0, offset)) || !end.Equal(start.Add(24*time.Hour)) {
				t.Errorf("%s window = %s..%s", e.LogicalName, start, end)
			}
			if !end.After(start) {
				t.Errorf("%s end not after start", e.LogicalName)
			}
			ref, _ := e.Reference("regardingobjectid")
			if ref.ID != contactID {
				t.Errorf("%s regarding = %s, want %s", e.LogicalName, ref.ID, contactID)
			}
		case schema.ServiceRequest:
			if e.String("ljr_name") != "Service Request for "+fullName {
				t.Errorf("ljr_name = %q", e.String("ljr_name"))
			}
			if e.String("ljr_userstory") != userStory {
				t.Errorf("ljr_userstory = %q", e.String("ljr_userstory"))
			}
			ref, _ := e.Reference("ljr_customer")
			if ref.ID != account.ID {
				t.Errorf("ljr_customer = %s, want %s", ref.ID, account.ID)
			}
		case schema.Activity:
			want, _ := ActivityPayload(fullName, "Acme")
			if e.String("ljr_json") != want {
				t.Errorf("ljr_json = %q, want %q", e.String("ljr_json"), want)
			}
			if v, _ := e.Get("ttlinseconds"); v != 86400 {
				t.Errorf("ttlinseconds = %v", v)
			}
			ref, _ := e.Reference("ljr_account")
			if ref.ID != account.ID {
				t.Errorf("ljr_account = %s, want %s", ref.ID, account.ID)
			}
		}
	}
}

func TestGenerateContacts_AbortPolicy(t *testing.T) {
	account := testAccount("Acme")
	svc := newMemoryService(account)
	svc.failOn[schema.Task] = errors.New("boom")
	in := newTestIngestor(svc, Options{Extended: true})

	summary, err := in.GenerateContacts(context.Background(), account, 3)
	if err == nil || !strings.Contains(err.Error(), "create task for") {
		t.Fatalf("error = %v, want create task failure", err)
	}
	if summary.Contacts != 1 || svc.count(schema.Appointment) != 0 {
		t.Errorf("contacts = %d, appointments = %d; run should stop at first failure",
			summary.Contacts, svc.count(schema.Appointment))
	}
	if svc.closed != 1 {
		t.Errorf("Close() called %d times, want 1", svc.closed)
	}
	if summary.Source != seed.SourceStatic {
		t.Errorf("Source = %q, want %q on an aborted run", summary.Source, seed.SourceStatic)
	}
}

func TestGenerateContacts_ContinuePolicy(t *testing.T) {
	account := testAccount("Acme")
	svc := newMemoryService(account)
	svc.failOn[schema.ServiceRequest] = errors.New("boom")
	in := newTestIngestor(svc, Options{Extended: true, Policy: Continue})

	summary, err := in.GenerateContacts(context.Background(), account, 2)
	if err != nil {
		t.Fatalf("GenerateContacts() error = %v", err)
	}
	if len(summary.Failures) != 2*ServiceRequestsPerContact {
		t.Errorf("failures = %d, want %d", len(summary.Failures), 2*ServiceRequestsPerContact)
	}
	if summary.Activities != 2*ActivitiesPerContact || summary.Tasks != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestGenerateContacts_ContinueSkipsDependentsOfFailedContact(t *testing.T) {
	account := testAccount("Acme")
	svc := newMemoryService(account)
	svc.failOn["retrieve"] = errors.New("gone")
	in := newTestIngestor(svc, Options{Extended: true, Policy: Continue})

	summary, err := in.GenerateContacts(context.Background(), account, 2)
	if err != nil {
		t.Fatalf("GenerateContacts() error = %v", err)
	}
	if summary.Contacts != 2 || summary.Tasks != 0 || len(summary.Failures) != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Failures[0].Step != "refetch contact" {
		t.Errorf("step = %q", summary.Failures[0].Step)
	}
}

func TestGenerateContacts_UsesMockRow(t *testing.T) {
	account := testAccount("Acme")
	svc := newMemoryService(account)
	in := newTestIngestor(svc, Options{})
	in.contacts = seed.NewGenerator(in.faker, seed.Options{
		Mock: []mockdata.MockContact{{ID: 1, FirstName: "Jo", LastName: "Lee", Email: "jo@x.com"}},
	})

	summary, err := in.GenerateContacts(context.Background(), account, 1)
	if err != nil {
		t.Fatalf("GenerateContacts() error = %v", err)
	}
	if summary.Source != seed.SourceMock {
		t.Errorf("Source = %q, want %q", summary.Source, seed.SourceMock)
	}
	c := svc.created[0]
	if c.String("firstname") != "Jo" || c.String("lastname") != "Lee" || c.String("emailaddress1") != "jo@x.com" {
		t.Errorf("contact = %v", c.Attributes)
	}
}

func TestGenerateContacts_CancelledContext(t *testing.T) {
	account := testAccount("Acme")
	svc := newMemoryService(account)
	in := newTestIngestor(svc, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := in.GenerateContacts(ctx, account, 5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(svc.created) != 0 {
		t.Errorf("created %d records after cancel", len(svc.created))
	}
}

func TestPickRandomAccount(t *testing.T) {
	accounts := []*crm.Entity{testAccount("A"), testAccount("B"), testAccount("C")}
	svc := newMemoryService(accounts...)
	in := newTestIngestor(svc, Options{})

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		a, err := in.PickRandomAccount(context.Background())
		if err != nil {
			t.Fatalf("PickRandomAccount() error = %v", err)
		}
		seen[a.String("name")] = true
	}
	if len(seen) != 3 {
		t.Errorf("picked %v, want all three accounts", seen)
	}
	if svc.closed != 100 {
		t.Errorf("Close() called %d times, want one per call", svc.closed)
	}
}

func TestPickRandomAccount_Errors(t *testing.T) {
	notReady := newMemoryService(testAccount("A"))
	notReady.ready = false

	tests := []struct {
		name    string
		connect Connector
		want    error
	}{
		{"no accounts", newMemoryService().connector(), ErrNoAccounts},
		{"not ready", notReady.connector(), ErrNotReady},
		{"connect fails", func(ctx context.Context) (Service, error) { return nil, errors.New("dial") }, ErrNotReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := New(tt.connect, Options{Faker: gofakeit.New(1)})
			if _, err := in.PickRandomAccount(context.Background()); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExecute_NoAccountsCreatesNothing(t *testing.T) {
	svc := newMemoryService()
	in := newTestIngestor(svc, Options{Count: 5, Extended: true})

	if _, err := in.Execute(context.Background()); !errors.Is(err, ErrNoAccounts) {
		t.Fatalf("Execute() error = %v, want ErrNoAccounts", err)
	}
	if len(svc.created) != 0 {
		t.Errorf("created %d records, want 0", len(svc.created))
	}
}

func TestCreateDemoAccount(t *testing.T) {
	svc := newMemoryService()
	in := newTestIngestor(svc, Options{})

	got, err := in.CreateDemoAccount(context.Background())
	if err != nil {
		t.Fatalf("CreateDemoAccount() error = %v", err)
	}
	if got.String("name") != "Test Account 0" || got.String("emailaddress1") != "testaccount0@example.com" {
		t.Errorf("account = %v", got.Attributes)
	}
	if v, _ := got.Get("ljr_accountstatus"); v != crm.OptionSetValue(100000004) {
		t.Errorf("ljr_accountstatus = %v", v)
	}
	if svc.closed != 1 {
		t.Errorf("Close() called %d times, want 1", svc.closed)
	}
}

func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FailurePolicy
		wantErr bool
	}{
		{"", Abort, false},
		{"abort", Abort, false},
		{" Continue ", Continue, false},
		{"retry", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFailurePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFailurePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestActivityPayload(t *testing.T) {
	tests := []struct {
		contact string
		account string
		want    string
	}{
		{"Jo Lee", "Acme", `{"contact":"Jo Lee","account":"Acme","data":{"timestamp":"880","duration":"123"}}`},
		{`Sam "The Man"`, `O'Brien\Sons`, `{"contact":"Sam \"The Man\"","account":"O'Brien\\Sons","data":{"timestamp":"880","duration":"123"}}`},
	}
	for _, tt := range tests {
		got, err := ActivityPayload(tt.contact, tt.account)
		if err != nil {
			t.Fatalf("ActivityPayload() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("ActivityPayload(%q, %q) = %s, want %s", tt.contact, tt.account, got, tt.want)
		}
	}
}
