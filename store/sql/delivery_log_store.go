package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-twilio/core"
	"github.com/goliatone/go-twilio/webhooks"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeliveryLogStore persists outbound attempts and applies status callback
// updates. It is both a sent/queued hook and a webhook subscriber.
type DeliveryLogStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryLogRecord]
	now  func() time.Time
}

func NewDeliveryLogStore(db *bun.DB) (*DeliveryLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryLogRecord](db, deliveryLogHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery log repository wiring: %w", err)
		}
	}
	return &DeliveryLogStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Attach registers the store on the sent and queued hook lists.
func (s *DeliveryLogStore) Attach(events *core.EventBus) {
	if s == nil || events == nil {
		return
	}
	events.OnSent(s)
	events.OnQueued(s)
}

func (s *DeliveryLogStore) OnDelivery(ctx context.Context, event core.DeliveryEvent) error {
	_, err := s.Record(ctx, core.NewDeliveryLogEntry(event))
	return err
}

func (s *DeliveryLogStore) Record(ctx context.Context, entry core.DeliveryLogEntry) (core.DeliveryLogEntry, error) {
	if s == nil || s.repo == nil {
		return core.DeliveryLogEntry{}, fmt.Errorf("sqlstore: delivery log store is not configured")
	}
	if strings.TrimSpace(entry.To) == "" {
		return core.DeliveryLogEntry{}, core.NewBadInputError("sqlstore: delivery recipient is required", nil)
	}
	now := s.now()
	record := &deliveryLogRecord{
		ID:             strings.TrimSpace(entry.ID),
		Kind:           strings.TrimSpace(string(entry.Kind)),
		ToNumber:       strings.TrimSpace(entry.To),
		Body:           entry.Body,
		URL:            strings.TrimSpace(entry.URL),
		Status:         strings.TrimSpace(string(entry.Status)),
		ProviderStatus: strings.TrimSpace(entry.ProviderStatus),
		Queue:          strings.TrimSpace(entry.Queue),
		SegmentsCount:  entry.SegmentsCount,
		ErrorCode:      strings.TrimSpace(entry.ErrorCode),
		ErrorMessage:   strings.TrimSpace(entry.ErrorMessage),
		Metadata:       core.RedactSensitiveMap(entry.Metadata),
		CreatedAt:      entry.CreatedAt.UTC(),
		UpdatedAt:      entry.UpdatedAt.UTC(),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Kind == "" {
		record.Kind = string(core.DeliveryKindMessage)
	}
	if providerID := strings.TrimSpace(entry.ProviderID); providerID != "" {
		record.ProviderID = &providerID
	}
	if record.Metadata == nil {
		record.Metadata = map[string]any{}
	}
	if entry.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.DeliveryLogEntry{}, err
	}
	return deliveryLogToDomain(created), nil
}

func (s *DeliveryLogStore) GetByProviderID(ctx context.Context, providerID string) (core.DeliveryLogEntry, error) {
	record, err := s.findByProviderID(ctx, providerID)
	if err != nil {
		return core.DeliveryLogEntry{}, err
	}
	return deliveryLogToDomain(record), nil
}

func (s *DeliveryLogStore) List(ctx context.Context, filter core.DeliveryLogFilter) (core.DeliveryLogPage, error) {
	if s == nil || s.repo == nil {
		return core.DeliveryLogPage{}, fmt.Errorf("sqlstore: delivery log store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 25
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if kind := strings.TrimSpace(string(filter.Kind)); kind != "" {
		selectors = append(selectors, repository.SelectBy("kind", "=", kind))
	}
	if to := strings.TrimSpace(filter.To); to != "" {
		selectors = append(selectors, repository.SelectBy("to_number", "=", to))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.DeliveryLogPage{}, err
	}
	items := make([]core.DeliveryLogEntry, 0, len(records))
	for _, record := range records {
		items = append(items, deliveryLogToDomain(record))
	}
	return core.DeliveryLogPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: offset+len(items) < total,
	}, nil
}

// UpdateStatus applies a provider status transition to the entry carrying
// the provider id.
func (s *DeliveryLogStore) UpdateStatus(ctx context.Context, update core.DeliveryStatusUpdate) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: delivery log store is not configured")
	}
	record, err := s.findByProviderID(ctx, update.ProviderID)
	if err != nil {
		return err
	}
	record.ProviderStatus = strings.ToLower(strings.TrimSpace(update.ProviderStatus))
	if code := strings.TrimSpace(update.ErrorCode); code != "" {
		record.ErrorCode = code
	}
	if message := strings.TrimSpace(update.ErrorMessage); message != "" {
		record.ErrorMessage = message
	}
	record.UpdatedAt = update.OccurredAt.UTC()
	if update.OccurredAt.IsZero() {
		record.UpdatedAt = s.now()
	}
	_, err = s.repo.Update(ctx, record, repository.UpdateByID(record.ID))
	return err
}

// HandleWebhook records message and call status callbacks. Deliveries the
// log has never seen are ignored.
func (s *DeliveryLogStore) HandleWebhook(ctx context.Context, event webhooks.Event) (*webhooks.Response, error) {
	update, ok := StatusUpdateFromEvent(event)
	if !ok {
		return nil, nil
	}
	if err := s.UpdateStatus(ctx, update); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return nil, nil
}

// StatusUpdateFromEvent extracts a status transition from a message or
// voice status webhook.
func StatusUpdateFromEvent(event webhooks.Event) (core.DeliveryStatusUpdate, bool) {
	switch {
	case event.IsMessageStatusUpdate():
		return core.DeliveryStatusUpdate{
			ProviderID:     event.MessageSID(),
			ProviderStatus: event.Payload.Field(webhooks.FieldMessageStatus),
			ErrorCode:      event.Payload.Field("ErrorCode"),
			ErrorMessage:   event.Payload.Field("ErrorMessage"),
		}, event.MessageSID() != ""
	case event.IsVoiceWebhook():
		status := event.Payload.Field(webhooks.FieldCallStatus)
		if status == "" || event.CallSID() == "" {
			return core.DeliveryStatusUpdate{}, false
		}
		return core.DeliveryStatusUpdate{
			ProviderID:     event.CallSID(),
			ProviderStatus: status,
			ErrorCode:      event.Payload.Field("ErrorCode"),
		}, true
	default:
		return core.DeliveryStatusUpdate{}, false
	}
}

func (s *DeliveryLogStore) findByProviderID(ctx context.Context, providerID string) (*deliveryLogRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery log store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, core.NewBadInputError("sqlstore: provider id is required", nil)
	}
	record := &deliveryLogRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", providerID).
		OrderExpr("?TableAlias.created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("delivery", map[string]any{"provider_id": providerID})
		}
		return nil, err
	}
	return record, nil
}

func deliveryLogToDomain(record *deliveryLogRecord) core.DeliveryLogEntry {
	if record == nil {
		return core.DeliveryLogEntry{}
	}
	entry := core.DeliveryLogEntry{
		ID:             record.ID,
		Kind:           core.DeliveryKind(record.Kind),
		To:             record.ToNumber,
		Body:           record.Body,
		URL:            record.URL,
		Status:         core.DeliveryStatus(record.Status),
		ProviderStatus: record.ProviderStatus,
		Queue:          record.Queue,
		SegmentsCount:  record.SegmentsCount,
		ErrorCode:      record.ErrorCode,
		ErrorMessage:   record.ErrorMessage,
		Metadata:       copyAnyMap(record.Metadata),
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
	if record.ProviderID != nil {
		entry.ProviderID = *record.ProviderID
	}
	return entry
}

func notFoundError(resource string, metadata map[string]any) error {
	return goerrors.New("sqlstore: "+resource+" not found", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(core.ErrorNotFound).
		WithMetadata(metadata)
}

func IsNotFound(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == core.ErrorNotFound
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.DeliveryHook      = (*DeliveryLogStore)(nil)
	_ core.DeliveryLogReader = (*DeliveryLogStore)(nil)
	_ webhooks.Subscriber    = (*DeliveryLogStore)(nil)
)
