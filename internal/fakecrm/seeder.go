// ABOUTME: Pre-populates the fake CRM with accounts so the loader has a parent to pick.
// ABOUTME: Account values come from gofakeit so seeded runs are reproducible.

package fakecrm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/2389/dataloader/internal/schema"
	"github.com/2389/dataloader/internal/store"
)

// SeedAccounts creates n accounts and returns their ids.
func (s *Server) SeedAccounts(faker *gofakeit.Faker, n int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.New()
		addr := faker.Address()
		doc := map[string]any{
			"accountid":                id.String(),
			"name":                     faker.Company(),
			"telephone1":               faker.Phone(),
			"emailaddress1":            faker.Email(),
			"address1_line1":           addr.Street,
			"address1_city":            addr.City,
			"address1_stateorprovince": addr.State,
			"address1_postalcode":      addr.Zip,
			"address1_country":         addr.Country,
			"address1_latitude":        addr.Latitude,
			"address1_longitude":       addr.Longitude,
			"createdon":                s.now().UTC().Format(time.RFC3339),
		}

		data, err := json.Marshal(doc)
		if err != nil {
			return ids, fmt.Errorf("encode account: %w", err)
		}
		if err := s.store.CreateRecord(&store.Record{Entity: schema.Account, ID: id.String(), Data: string(data)}); err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
