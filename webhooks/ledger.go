package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

type DeliveryRecord struct {
	ID            string
	ClaimID       string
	ProviderID    string
	DeliveryID    string
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	ClaimedUntil  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger tracks webhook deliveries so provider retries are handled
// at most once. Claim returns claimed=false for deliveries that are already
// processed, dead, or held by an unexpired lease.
type DeliveryLedger interface {
	Claim(
		ctx context.Context,
		providerID string,
		deliveryID string,
		payload []byte,
		lease time.Duration,
	) (DeliveryRecord, bool, error)
	Get(ctx context.Context, providerID string, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// MemoryLedger is an in-process DeliveryLedger for single instance
// deployments and tests.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]DeliveryRecord
	claims  map[string]string
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: map[string]DeliveryRecord{},
		claims:  map[string]string{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: provider id and delivery id are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := ledgerKey(providerID, deliveryID)
	record, exists := l.records[key]
	if exists && !Claimable(record, now) {
		return record, false, nil
	}
	if !exists {
		record = DeliveryRecord{
			ID:         uuid.NewString(),
			ProviderID: providerID,
			DeliveryID: deliveryID,
			CreatedAt:  now,
		}
	}
	if record.ClaimID != "" {
		delete(l.claims, record.ClaimID)
	}
	claimedUntil := now.Add(lease)
	record.ClaimID = uuid.NewString()
	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.ClaimedUntil = &claimedUntil
	record.NextAttemptAt = nil
	record.UpdatedAt = now
	l.records[key] = record
	l.claims[record.ClaimID] = key
	return record, true, nil
}

// Claimable reports whether a ledger record may be claimed at now.
func Claimable(record DeliveryRecord, now time.Time) bool {
	switch record.Status {
	case DeliveryStatusPending:
		return true
	case DeliveryStatusRetryReady:
		return record.NextAttemptAt == nil || !record.NextAttemptAt.After(now)
	case DeliveryStatusProcessing:
		return record.ClaimedUntil != nil && !record.ClaimedUntil.After(now)
	default:
		return false
	}
}

func (l *MemoryLedger) Get(_ context.Context, providerID string, deliveryID string) (DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[ledgerKey(strings.TrimSpace(providerID), strings.TrimSpace(deliveryID))]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery %q not found", deliveryID)
	}
	return record, nil
}

func (l *MemoryLedger) Complete(_ context.Context, claimID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, record, err := l.claimed(claimID)
	if err != nil {
		return err
	}
	record.Status = DeliveryStatusProcessed
	record.ClaimedUntil = nil
	record.LastError = ""
	record.UpdatedAt = l.now()
	l.records[key] = record
	delete(l.claims, claimID)
	return nil
}

func (l *MemoryLedger) Fail(_ context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, record, err := l.claimed(claimID)
	if err != nil {
		return err
	}
	if cause != nil {
		record.LastError = cause.Error()
	}
	record.ClaimedUntil = nil
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDead
		record.NextAttemptAt = nil
	} else {
		next := nextAttemptAt.UTC()
		record.Status = DeliveryStatusRetryReady
		record.NextAttemptAt = &next
	}
	record.UpdatedAt = l.now()
	l.records[key] = record
	delete(l.claims, claimID)
	return nil
}

func (l *MemoryLedger) claimed(claimID string) (string, DeliveryRecord, error) {
	key, ok := l.claims[strings.TrimSpace(claimID)]
	if !ok {
		return "", DeliveryRecord{}, fmt.Errorf("webhooks: claim %q is not active", claimID)
	}
	return key, l.records[key], nil
}

func ledgerKey(providerID string, deliveryID string) string {
	return providerID + ":" + deliveryID
}
