package postgres

import (
	"context"
	"fmt"

	"payflow/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Create appends an audit log entry.
func (r *AuditRepo) Create(ctx context.Context, l *domain.AuditLog) error {
	query := `INSERT INTO audit_logs (id, actor, action, resource_type,
		resource_id, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		l.ID, l.Actor, l.Action, l.ResourceType,
		l.ResourceID, l.Details, l.IPAddress, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
