package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/infrastructure/postgres"
	"github.com/iho/fxledger/internal/infrastructure/postgres/generated"
)

// TestDB provides an isolated, migrated PostgreSQL database.
type TestDB struct {
	Pool    *pgxpool.Pool
	Queries *generated.Queries
	URL     string
	t       *testing.T
}

// NewTestDB connects to DATABASE_URL when set, otherwise starts a throwaway
// PostgreSQL container. Migrations are applied either way.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = startContainer(ctx, t)
	}

	if err := postgres.RunMigrations(dbURL, MigrationsPath()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := postgres.NewPool(ctx, dbURL, 10, 1)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	return &TestDB{
		Pool:    pool,
		Queries: generated.New(pool),
		URL:     dbURL,
		t:       t,
	}
}

func startContainer(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fxledger"),
		tcpostgres.WithUsername("fxledger"),
		tcpostgres.WithPassword("fxledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return dsn
}

// MigrationsPath locates the migrations directory from this source file.
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "internal", "infrastructure", "postgres", "migrations")
}

// TruncateAll removes all data from tables.
func (db *TestDB) TruncateAll(ctx context.Context) {
	db.t.Helper()

	_, err := db.Pool.Exec(ctx, `
		TRUNCATE TABLE
			customer_balance_history, bank_account_balance_history, currency_pool_history,
			customer_balances, bank_account_balances, currency_pools,
			outbox_events, audit_logs, bank_accounts, customers
		CASCADE
	`)
	if err != nil {
		db.t.Fatalf("failed to truncate tables: %v", err)
	}
}

// CreateTestCustomer inserts a customer.
func (db *TestDB) CreateTestCustomer(ctx context.Context, name string) *domain.Customer {
	db.t.Helper()

	customer := &domain.Customer{ID: GenerateID(), Name: name, CreatedAt: time.Now().UTC()}
	err := db.Queries.CreateCustomer(ctx, generated.CreateCustomerParams{
		ID:        customer.ID,
		Name:      customer.Name,
		CreatedAt: pgTime(customer.CreatedAt),
	})
	if err != nil {
		db.t.Fatalf("failed to create test customer: %v", err)
	}
	return customer
}

// CreateTestBankAccount inserts a bank account in currency.
func (db *TestDB) CreateTestBankAccount(ctx context.Context, name, currency string) *domain.BankAccount {
	db.t.Helper()

	account := &domain.BankAccount{ID: GenerateID(), Name: name, Currency: currency, CreatedAt: time.Now().UTC()}
	err := db.Queries.CreateBankAccount(ctx, generated.CreateBankAccountParams{
		ID:        account.ID,
		Name:      account.Name,
		Currency:  account.Currency,
		CreatedAt: pgTime(account.CreatedAt),
	})
	if err != nil {
		db.t.Fatalf("failed to create test bank account: %v", err)
	}
	return account
}

// GenerateID generates a new ULID.
func GenerateID() string {
	return ulid.Make().String()
}

func pgTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
