package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-twilio/core"
)

const deliveryStatusCacheKeyPrefix = "go-twilio::delivery_status::v1"

type DeliveryStatusWriter interface {
	GetByProviderID(ctx context.Context, providerID string) (core.DeliveryLogEntry, error)
	UpdateStatus(ctx context.Context, update core.DeliveryStatusUpdate) error
}

// CachedDeliveryStatusStore serves provider id lookups from cache and
// invalidates the entry on every status update.
type CachedDeliveryStatusStore struct {
	base  DeliveryStatusWriter
	cache repositorycache.CacheService
}

func NewCachedDeliveryStatusStore(
	base DeliveryStatusWriter,
	cacheService repositorycache.CacheService,
) (*CachedDeliveryStatusStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base delivery status store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: delivery status cache service is required")
	}
	return &CachedDeliveryStatusStore{base: base, cache: cacheService}, nil
}

// DeliveryStatusCacheKey returns go-twilio::delivery_status::v1::<provider_id>
// with the provider id URL-path escaped.
func DeliveryStatusCacheKey(providerID string) (string, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return "", core.NewBadInputError("sqlstore: provider id is required", nil)
	}
	return deliveryStatusCacheKeyPrefix + "::" + url.PathEscape(providerID), nil
}

func (s *CachedDeliveryStatusStore) GetByProviderID(ctx context.Context, providerID string) (core.DeliveryLogEntry, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.DeliveryLogEntry{}, fmt.Errorf("sqlstore: cached delivery status store is not configured")
	}
	cacheKey, err := DeliveryStatusCacheKey(providerID)
	if err != nil {
		return core.DeliveryLogEntry{}, err
	}
	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.DeliveryLogEntry, error) {
		fetched, fetchErr := s.base.GetByProviderID(ctx, strings.TrimSpace(providerID))
		if fetchErr != nil {
			return core.DeliveryLogEntry{}, fetchErr
		}
		return cloneDeliveryLogEntry(fetched), nil
	})
	if err != nil {
		return core.DeliveryLogEntry{}, err
	}
	return cloneDeliveryLogEntry(entry), nil
}

func (s *CachedDeliveryStatusStore) UpdateStatus(ctx context.Context, update core.DeliveryStatusUpdate) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached delivery status store is not configured")
	}
	cacheKey, err := DeliveryStatusCacheKey(update.ProviderID)
	if err != nil {
		return err
	}
	if err := s.base.UpdateStatus(ctx, update); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneDeliveryLogEntry(entry core.DeliveryLogEntry) core.DeliveryLogEntry {
	cloned := entry
	cloned.Metadata = copyAnyMap(entry.Metadata)
	return cloned
}

var _ DeliveryStatusWriter = (*CachedDeliveryStatusStore)(nil)
