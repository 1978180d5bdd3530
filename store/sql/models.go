package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type deliveryLogRecord struct {
	bun.BaseModel `bun:"table:twilio_delivery_logs,alias:tdl"`

	ID             string         `bun:"id,pk"`
	Kind           string         `bun:"kind,notnull"`
	ToNumber       string         `bun:"to_number,notnull"`
	Body           string         `bun:"body,notnull"`
	URL            string         `bun:"url,notnull"`
	ProviderID     *string        `bun:"provider_id"`
	Status         string         `bun:"status,notnull"`
	ProviderStatus string         `bun:"provider_status,notnull"`
	Queue          string         `bun:"queue,notnull"`
	SegmentsCount  int            `bun:"segments_count,notnull"`
	ErrorCode      string         `bun:"error_code,notnull"`
	ErrorMessage   string         `bun:"error_message,notnull"`
	Metadata       map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:twilio_webhook_deliveries,alias:twd"`

	ID            string     `bun:"id,pk"`
	ProviderID    string     `bun:"provider_id,notnull"`
	DeliveryID    string     `bun:"delivery_id,notnull"`
	ClaimID       *string    `bun:"claim_id"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	LastError     string     `bun:"last_error,notnull"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	ClaimedUntil  *time.Time `bun:"claimed_until,nullzero"`
	Payload       []byte     `bun:"payload"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
