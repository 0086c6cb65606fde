package pos

import (
	"context"

	"github.com/google/uuid"
)

type SectionRepo interface {
	Create(ctx context.Context, section *Section) error
	List(ctx context.Context) ([]*Section, error)
}

type TableRepo interface {
	Create(ctx context.Context, table *Table) error
	Get(ctx context.Context, id uuid.UUID) (*Table, error)
	GetByName(ctx context.Context, name string) (*Table, error)
	List(ctx context.Context) ([]*Table, error)
	Save(ctx context.Context, table *Table) error
}

type OrderRepo interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context) ([]*Order, error)
	ListByStatus(ctx context.Context, status string) ([]*Order, error)
	Save(ctx context.Context, order *Order) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type DeliveryRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*DeliveryOrder, error)
	GetByExternalID(ctx context.Context, platform, externalID string) (*DeliveryOrder, error)
	ListLive(ctx context.Context) ([]*DeliveryOrder, error)
	List(ctx context.Context) ([]*DeliveryOrder, error)
	Create(ctx context.Context, order *DeliveryOrder) error
	Save(ctx context.Context, order *DeliveryOrder) error
}

// Counter hands out monotonically increasing numbers per sequence name.
type Counter interface {
	Next(ctx context.Context, name string) (int, error)
}

type Repos struct {
	SectionRepo  SectionRepo
	TableRepo    TableRepo
	OrderRepo    OrderRepo
	DeliveryRepo DeliveryRepo
	Counter      Counter
}
