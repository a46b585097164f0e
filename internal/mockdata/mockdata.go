// ABOUTME: Loads mock contact and account rows from CSV files.
// ABOUTME: Headers match fields case-insensitively; a missing file degrades to an empty table.

package mockdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// File names read from the mock data directory.
const (
	ContactsFile = "contacts1.csv"
	AccountsFile = "accounts1.csv"
)

// MockContact is one row of the contacts file.
type MockContact struct {
	ID          int
	FirstName   string
	LastName    string
	Email       string
	Gender      string
	City        string
	CountryCode string
}

// MockAccount is one row of the accounts file.
type MockAccount struct {
	OrganizationName string
	FoundedYear      int
	HQCity           string
	EmployeeCount    int
	CEOName          string
	StockSymbol      string
}

// Set holds both mock tables.
type Set struct {
	Contacts []MockContact
	Accounts []MockAccount
}

// Load reads both files from dir. A missing file, or a dir that is not a
// directory, is logged and leaves its table empty; any other read or parse
// error is returned.
func Load(dir string) (*Set, error) {
	set := &Set{}

	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		log.Printf("Mock data not loaded: %s is not a directory", dir)
		return set, nil
	}

	contacts, err := LoadContacts(filepath.Join(dir, ContactsFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("Mock contacts not loaded: %v", err)
	case err != nil:
		return nil, err
	default:
		set.Contacts = contacts
	}

	accounts, err := LoadAccounts(filepath.Join(dir, AccountsFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("Mock accounts not loaded: %v", err)
	case err != nil:
		return nil, err
	default:
		set.Accounts = accounts
	}

	return set, nil
}

// LoadContacts reads a contacts CSV file.
func LoadContacts(path string) ([]MockContact, error) {
	var out []MockContact
	err := readRows(path, func(row row) error {
		id, err := row.integer("id")
		if err != nil {
			return err
		}
		out = append(out, MockContact{
			ID:          id,
			FirstName:   row.str("first_name"),
			LastName:    row.str("last_name"),
			Email:       row.str("email"),
			Gender:      row.str("gender"),
			City:        row.str("city"),
			CountryCode: row.str("country_code"),
		})
		return nil
	})
	return out, err
}

// LoadAccounts reads an accounts CSV file.
func LoadAccounts(path string) ([]MockAccount, error) {
	var out []MockAccount
	err := readRows(path, func(row row) error {
		founded, err := row.integer("founded_year")
		if err != nil {
			return err
		}
		employees, err := row.integer("employee_count")
		if err != nil {
			return err
		}
		out = append(out, MockAccount{
			OrganizationName: row.str("organization_name"),
			FoundedYear:      founded,
			HQCity:           row.str("hq_city"),
			EmployeeCount:    employees,
			CEOName:          row.str("ceo_name"),
			StockSymbol:      row.str("stock_symbol"),
		})
		return nil
	})
	return out, err
}

// row is a CSV record addressed by lower-cased header name.
type row struct {
	index  map[string]int
	record []string
}

func (r row) str(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

// integer parses an integer column. An empty cell is zero.
func (r row) integer(column string) (int, error) {
	v := r.str(column)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("column %s: invalid integer %q", column, v)
	}
	return n, nil
}

func readRows(path string, fn func(row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: failed to read CSV headers: %w", path, err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		// Excel exports may carry a UTF-8 BOM on the first header
		h = strings.TrimPrefix(h, "\ufeff")
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := fn(row{index: index, record: record}); err != nil {
			line, _ := reader.FieldPos(0)
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}
