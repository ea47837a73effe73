package postgres

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/infrastructure/postgres/generated"
	"github.com/iho/fxledger/internal/usecase"
)

const auditColumns = `id, actor, action, scope_kind, resource_id, request_id,
	before_state, after_state, status, error_message, created_at`

// AuditRepository implements usecase.AuditRepository.
type AuditRepository struct {
	db generated.DBTX
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return newAuditRepository(pool)
}

func newAuditRepository(db generated.DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateTx inserts an audit log inside tx so it commits with the change it describes.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	beforeState, err := marshalState(log.BeforeState)
	if err != nil {
		return err
	}
	afterState, err := marshalState(log.AfterState)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = dbtx(tx, r.db).Exec(ctx, query,
		log.ID,
		log.Actor,
		string(log.Action),
		string(log.ScopeKind),
		log.ResourceID,
		log.RequestID,
		beforeState,
		afterState,
		string(log.Status),
		log.ErrorMessage,
		timeToPgTimestamptz(log.CreatedAt),
	)

	return err
}

// List retrieves audit logs with filtering, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	var args sqlArgs
	conditions := []string{"TRUE"}

	if filter.Actor != "" {
		conditions = append(conditions, "actor = "+args.add(filter.Actor))
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = "+args.add(string(filter.Action)))
	}
	if filter.ScopeKind != "" {
		conditions = append(conditions, "scope_kind = "+args.add(string(filter.ScopeKind)))
	}
	if filter.ResourceID != "" {
		conditions = append(conditions, "resource_id = "+args.add(filter.ResourceID))
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC, id`

	if filter.Limit > 0 {
		query += ` LIMIT ` + args.add(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + args.add(filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		var (
			log                     domain.AuditLog
			action, kind, status    string
			beforeState, afterState []byte
		)

		err := rows.Scan(
			&log.ID,
			&log.Actor,
			&action,
			&kind,
			&log.ResourceID,
			&log.RequestID,
			&beforeState,
			&afterState,
			&status,
			&log.ErrorMessage,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		log.Action = domain.AuditAction(action)
		log.ScopeKind = domain.ScopeKind(kind)
		log.Status = domain.AuditStatus(status)
		if beforeState != nil {
			_ = json.Unmarshal(beforeState, &log.BeforeState)
		}
		if afterState != nil {
			_ = json.Unmarshal(afterState, &log.AfterState)
		}

		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

func marshalState(state domain.JSON) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}
