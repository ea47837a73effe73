package generated

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type BankAccount struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	BankName      string             `json:"bank_name"`
	AccountNumber string             `json:"account_number"`
	Currency      string             `json:"currency"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

type BankAccountBalance struct {
	BankAccountID string             `json:"bank_account_id"`
	Balance       pgtype.Numeric     `json:"balance"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
}

type CurrencyPool struct {
	Currency    string             `json:"currency"`
	Balance     pgtype.Numeric     `json:"balance"`
	TotalBought pgtype.Numeric     `json:"total_bought"`
	TotalSold   pgtype.Numeric     `json:"total_sold"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
}

type Customer struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Phone     string             `json:"phone"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type CustomerBalance struct {
	CustomerID string             `json:"customer_id"`
	Currency   string             `json:"currency"`
	Balance    pgtype.Numeric     `json:"balance"`
	UpdatedAt  pgtype.Timestamptz `json:"updated_at"`
}

type OutboxEvent struct {
	ID            string             `json:"id"`
	AggregateID   string             `json:"aggregate_id"`
	AggregateType string             `json:"aggregate_type"`
	EventType     string             `json:"event_type"`
	Payload       []byte             `json:"payload"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	Published     bool               `json:"published"`
	PublishedAt   pgtype.Timestamptz `json:"published_at"`
}
