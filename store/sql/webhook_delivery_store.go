package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-twilio/webhooks"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultClaimLease = 30 * time.Second

// WebhookDeliveryStore is the database backed webhooks.DeliveryLedger.
// Competing claims are resolved by a conditional update on claim_id.
type WebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
	now  func() time.Time
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &WebhookDeliveryStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: provider id and delivery id are required")
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}

	now := s.now()
	claimID := uuid.NewString()
	claimedUntil := now.Add(lease)
	record := &webhookDeliveryRecord{
		ID:           uuid.NewString(),
		ProviderID:   providerID,
		DeliveryID:   deliveryID,
		ClaimID:      &claimID,
		Status:       webhooks.DeliveryStatusProcessing,
		Attempts:     1,
		ClaimedUntil: &claimedUntil,
		Payload:      append([]byte(nil), payload...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err == nil {
		return webhookDeliveryToDomain(record), true, nil
	} else if !isUniqueViolation(err) {
		return webhooks.DeliveryRecord{}, false, err
	}

	existing, err := s.find(ctx, providerID, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if !webhooks.Claimable(webhookDeliveryToDomain(existing), now) {
		return webhookDeliveryToDomain(existing), false, nil
	}

	query := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = ?", existing.Attempts+1).
		Set("claimed_until = ?", claimedUntil).
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", existing.ID)
	if existing.ClaimID == nil {
		query = query.Where("claim_id IS NULL")
	} else {
		query = query.Where("claim_id = ?", *existing.ClaimID)
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		current, getErr := s.find(ctx, providerID, deliveryID)
		if getErr != nil {
			return webhooks.DeliveryRecord{}, false, getErr
		}
		return webhookDeliveryToDomain(current), false, nil
	}

	claimed, err := s.find(ctx, providerID, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	return webhookDeliveryToDomain(claimed), true, nil
}

func (s *WebhookDeliveryStore) Get(
	ctx context.Context,
	providerID string,
	deliveryID string,
) (webhooks.DeliveryRecord, error) {
	record, err := s.find(ctx, providerID, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	return webhookDeliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	res, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("claim_id = NULL").
		Set("claimed_until = NULL").
		Set("next_attempt_at = NULL").
		Set("last_error = ?", "").
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", strings.TrimSpace(claimID)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("sqlstore: claim %q is not active", claimID)
	}
	return nil
}

func (s *WebhookDeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.claim_id = ?", strings.TrimSpace(claimID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlstore: claim %q is not active", claimID)
		}
		return err
	}

	record.ClaimID = nil
	record.ClaimedUntil = nil
	if cause != nil {
		record.LastError = cause.Error()
	}
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = webhooks.DeliveryStatusDead
		record.NextAttemptAt = nil
	} else {
		next := nextAttemptAt.UTC()
		record.Status = webhooks.DeliveryStatusRetryReady
		record.NextAttemptAt = &next
	}
	record.UpdatedAt = s.now()
	_, err = s.repo.Update(ctx, record, repository.UpdateByID(record.ID))
	return err
}

func (s *WebhookDeliveryStore) find(ctx context.Context, providerID string, deliveryID string) (*webhookDeliveryRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", strings.TrimSpace(providerID)).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("webhook delivery", map[string]any{
				"provider_id": providerID,
				"delivery_id": deliveryID,
			})
		}
		return nil, err
	}
	return record, nil
}

func webhookDeliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         record.ID,
		ProviderID: record.ProviderID,
		DeliveryID: record.DeliveryID,
		Status:     record.Status,
		Attempts:   record.Attempts,
		LastError:  record.LastError,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.ClaimID != nil {
		result.ClaimID = *record.ClaimID
	}
	if record.NextAttemptAt != nil {
		value := record.NextAttemptAt.UTC()
		result.NextAttemptAt = &value
	}
	if record.ClaimedUntil != nil {
		value := record.ClaimedUntil.UTC()
		result.ClaimedUntil = &value
	}
	return result
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
