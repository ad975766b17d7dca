package storage

import (
	"context"
	"time"

	"nagarpalika/backend/internal/models"

	gocache "github.com/patrickmn/go-cache"
)

// CachedStorage serves GetReport from memory and refreshes the entry on every update.
// Listing always goes to the underlying store.
type CachedStorage struct {
	Storage
	cache *gocache.Cache
}

// NewCachedStorage wraps inner with a read-through cache of ttl.
func NewCachedStorage(inner Storage, ttl time.Duration) *CachedStorage {
	return &CachedStorage{
		Storage: inner,
		cache:   gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedStorage) CreateReport(ctx context.Context, report *models.Report) error {
	if err := c.Storage.CreateReport(ctx, report); err != nil {
		return err
	}
	c.cache.SetDefault(report.ID, report.Clone())
	return nil
}

func (c *CachedStorage) UpdateReport(ctx context.Context, id string, patch models.ReportPatch) (*models.Report, error) {
	updated, err := c.Storage.UpdateReport(ctx, id, patch)
	if err != nil {
		c.cache.Delete(id)
		return nil, err
	}
	c.cache.SetDefault(id, updated.Clone())
	return updated, nil
}

func (c *CachedStorage) GetReport(ctx context.Context, id string) (*models.Report, error) {
	if v, found := c.cache.Get(id); found {
		return v.(*models.Report).Clone(), nil
	}
	report, err := c.Storage.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(id, report.Clone())
	return report, nil
}
