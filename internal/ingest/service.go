// ABOUTME: The CRM operations the ingestor depends on, and how it obtains a connection.
// ABOUTME: Each operation group opens its own connection and closes it when done.

package ingest

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/2389/dataloader/internal/crm"
)

// Service is the subset of *crm.Client the ingestor uses.
type Service interface {
	Ready() bool
	Query(ctx context.Context, logicalName string, cols crm.ColumnSet) ([]*crm.Entity, error)
	Create(ctx context.Context, e *crm.Entity) (uuid.UUID, error)
	Retrieve(ctx context.Context, logicalName string, id uuid.UUID, cols crm.ColumnSet) (*crm.Entity, error)
	Close() error
}

// Connector opens a fresh Service.
type Connector func(ctx context.Context) (Service, error)

// CRMConnector connects to the Web API with the given connection string.
func CRMConnector(connectionString string, timeout time.Duration) Connector {
	return func(ctx context.Context) (Service, error) {
		c, err := crm.Connect(ctx, connectionString, crm.WithTimeout(timeout))
		if err != nil {
			return nil, err
		}
		log.Printf("Connected to %s", c.Redacted())
		return c, nil
	}
}
