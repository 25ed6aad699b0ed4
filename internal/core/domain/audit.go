package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegister       AuditAction = "REGISTER"
	AuditActionLogin          AuditAction = "LOGIN"
	AuditActionChangePassword AuditAction = "CHANGE_PASSWORD"
	AuditActionCreateMerchant AuditAction = "CREATE_MERCHANT"
	AuditActionIssueKey       AuditAction = "ISSUE_KEY"
	AuditActionRevokeKey      AuditAction = "REVOKE_KEY"
	AuditActionCapture        AuditAction = "CAPTURE"
	AuditActionRefund         AuditAction = "REFUND"
)

// AuditLog records a single security-relevant action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Actor        string      `json:"actor"` // user email or merchant id
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
