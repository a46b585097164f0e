// ABOUTME: Tests for the mock CSV loader.
// ABOUTME: Covers header matching, missing-file isolation, integer parse errors, and idempotent loads.

package mockdata

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	set, err := Load("testdata")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	wantContacts := []MockContact{
		{ID: 1, FirstName: "Jo", LastName: "Lee", Email: "jo@x.com", Gender: "Female", City: "Lisbon", CountryCode: "PT"},
		{ID: 2, FirstName: "Sam", LastName: "O'Brien, Jr", Email: "sam@example.com", Gender: "Male", City: "Dublin", CountryCode: "IE"},
	}
	if !reflect.DeepEqual(set.Contacts, wantContacts) {
		t.Errorf("Contacts = %+v, want %+v", set.Contacts, wantContacts)
	}

	wantAccounts := []MockAccount{
		{OrganizationName: "Acme", FoundedYear: 1999, HQCity: "Springfield", EmployeeCount: 250, CEOName: "Wile Coyote", StockSymbol: "ACME"},
		{OrganizationName: "Globex", HQCity: "Cypress Creek", CEOName: "Hank Scorpio", StockSymbol: "GLBX"},
	}
	if !reflect.DeepEqual(set.Accounts, wantAccounts) {
		t.Errorf("Accounts = %+v, want %+v", set.Accounts, wantAccounts)
	}
}

func TestLoad_Idempotent(t *testing.T) {
	first, err := Load("testdata")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	second, err := Load("testdata")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("loading twice produced different sets")
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	tests := []struct {
		name         string
		dir          string
		wantContacts int
		wantAccounts int
	}{
		{"accounts missing", filepath.Join("testdata", "contactsonly"), 2, 0},
		{"directory missing", filepath.Join("testdata", "nope"), 0, 0},
		{"path is a file", filepath.Join("testdata", ContactsFile), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Load(tt.dir)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(set.Contacts) != tt.wantContacts || len(set.Accounts) != tt.wantAccounts {
				t.Errorf("got %d contacts, %d accounts; want %d, %d",
					len(set.Contacts), len(set.Accounts), tt.wantContacts, tt.wantAccounts)
			}
		})
	}
}

func TestLoad_InvalidInteger(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "badint"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	for _, want := range []string{"accounts1.csv", "line 2", "founded_year"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
