// ABOUTME: Creates the fixed "Test Account 0" demo account.
// ABOUTME: Runs independently of the contact load, on its own connection.

package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/2389/dataloader/internal/crm"
	"github.com/2389/dataloader/internal/schema"
)

// Option codes of the custom account choice columns.
const (
	accountTypeCode     crm.OptionSetValue = 100000001
	accountCategoryCode crm.OptionSetValue = 100000002
	accountSubtypeCode  crm.OptionSetValue = 100000003
	accountStatusCode   crm.OptionSetValue = 100000004
)

// DemoAccount returns the demo account record, not yet created.
func DemoAccount() *crm.Entity {
	const i = 0
	act := crm.NewEntity(schema.Account)
	act.Set("name", fmt.Sprintf("Test Account %d", i))
	act.Set("telephone1", "1234567890")
	act.Set("emailaddress1", fmt.Sprintf("testaccount%d@example.com", i))
	act.Set("address1_line1", "123 Test St")
	act.Set("address1_city", "Test City")
	act.Set("address1_stateorprovince", "Test State")
	act.Set("address1_postalcode", "12345")
	act.Set("address1_country", "Test Country")
	act.Set("address1_latitude", 12.345678)
	act.Set("address1_longitude", 98.765432)
	act.Set("ljr_accounttype", accountTypeCode)
	act.Set("ljr_accountcategory", accountCategoryCode)
	act.Set("ljr_accountsubtype", accountSubtypeCode)
	act.Set("ljr_accountstatus", accountStatusCode)
	return act
}

// CreateDemoAccount creates the demo account and returns it as stored.
func (in *Ingestor) CreateDemoAccount(ctx context.Context) (*crm.Entity, error) {
	svc, err := in.open(ctx)
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	act := DemoAccount()
	id, err := svc.Create(ctx, act)
	if err != nil {
		return nil, fmt.Errorf("create account %s: %w", act.String("name"), err)
	}

	stored, err := svc.Retrieve(ctx, schema.Account, id, crm.AllColumns())
	if err != nil {
		return nil, fmt.Errorf("retrieve account %s: %w", id, err)
	}
	log.Printf("✓ Created account %s (%s)", stored.String("name"), id)
	return stored, nil
}
