package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds every twilio store over one bun connection.
type RepositoryFactory struct {
	db *bun.DB

	deliveryLogs   *DeliveryLogStore
	deliveries     *WebhookDeliveryStore
	statusCache    repositorycache.CacheService
	cachedStatuses *CachedDeliveryStatusStore
}

type FactoryOption func(*RepositoryFactory)

// WithDeliveryStatusCache fronts provider id lookups with cacheService.
func WithDeliveryStatusCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.statusCache = cacheService
	}
}

// NewRepositoryFactoryFromPersistence uses the bun connection owned by a
// go-persistence-bun client. Migrations are the client's responsibility.
func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	return NewRepositoryFactoryFromDB(client.DB(), opts...)
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	factory := &RepositoryFactory{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}

	var err error
	if factory.deliveryLogs, err = NewDeliveryLogStore(db); err != nil {
		return nil, err
	}
	if factory.deliveries, err = NewWebhookDeliveryStore(db); err != nil {
		return nil, err
	}
	if factory.statusCache != nil {
		factory.cachedStatuses, err = NewCachedDeliveryStatusStore(factory.deliveryLogs, factory.statusCache)
		if err != nil {
			return nil, err
		}
	}
	return factory, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) DeliveryLogStore() *DeliveryLogStore {
	if f == nil {
		return nil
	}
	return f.deliveryLogs
}

// WebhookDeliveryStore is the SQL webhooks.DeliveryLedger.
func (f *RepositoryFactory) WebhookDeliveryStore() *WebhookDeliveryStore {
	if f == nil {
		return nil
	}
	return f.deliveries
}

// DeliveryStatusStore returns the cached status store when a cache was
// configured and the plain delivery log store otherwise.
func (f *RepositoryFactory) DeliveryStatusStore() DeliveryStatusWriter {
	if f == nil {
		return nil
	}
	if f.cachedStatuses != nil {
		return f.cachedStatuses
	}
	return f.deliveryLogs
}
