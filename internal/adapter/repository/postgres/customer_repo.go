package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/infrastructure/postgres/generated"
)

// CustomerRepository implements usecase.CustomerRepository.
type CustomerRepository struct {
	queries *generated.Queries
}

// NewCustomerRepository creates a new CustomerRepository.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return newCustomerRepository(pool)
}

func newCustomerRepository(db generated.DBTX) *CustomerRepository {
	return &CustomerRepository{queries: generated.New(db)}
}

// Create creates a new customer.
func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	return r.queries.CreateCustomer(ctx, generated.CreateCustomerParams{
		ID:        customer.ID,
		Name:      customer.Name,
		Phone:     customer.Phone,
		CreatedAt: timeToPgTimestamptz(customer.CreatedAt),
	})
}

// GetByID retrieves a customer by ID.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	row, err := r.queries.GetCustomerByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, err
	}

	return rowToCustomer(row), nil
}

// List lists customers with pagination.
func (r *CustomerRepository) List(ctx context.Context, limit, offset int) ([]*domain.Customer, error) {
	rows, err := r.queries.ListCustomers(ctx, generated.ListCustomersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	customers := make([]*domain.Customer, 0, len(rows))
	for _, row := range rows {
		customers = append(customers, rowToCustomer(row))
	}

	return customers, nil
}

func rowToCustomer(row generated.Customer) *domain.Customer {
	return &domain.Customer{
		ID:        row.ID,
		Name:      row.Name,
		Phone:     row.Phone,
		CreatedAt: row.CreatedAt.Time,
	}
}
