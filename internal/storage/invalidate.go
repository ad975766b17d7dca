package storage

import (
	"context"
	"log"

	"nagarpalika/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// InvalidationChannel carries the ids of reports changed outside the server.
const InvalidationChannel = "reports:invalidate"

// Publisher is the part of *redis.Client used to announce changed reports.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// PublishingStorage announces every successful update on InvalidationChannel so
// a server caching reports drops its copy. The write itself never fails because
// of the announcement.
type PublishingStorage struct {
	Storage
	Client  Publisher
	Channel string
}

func NewPublishingStorage(inner Storage, client Publisher) *PublishingStorage {
	return &PublishingStorage{Storage: inner, Client: client, Channel: InvalidationChannel}
}

func (p *PublishingStorage) UpdateReport(ctx context.Context, id string, patch models.ReportPatch) (*models.Report, error) {
	updated, err := p.Storage.UpdateReport(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if err := p.Client.Publish(ctx, p.Channel, id).Err(); err != nil {
		log.Printf("WARN: Failed to announce change of report %s: %v", id, err)
	}
	return updated, nil
}

// Invalidate drops the cached copy of id, if any.
func (c *CachedStorage) Invalidate(id string) {
	c.cache.Delete(id)
}

// ListenInvalidations drops the reports named on msgs until ctx is cancelled or
// msgs is closed. msgs is normally (*redis.PubSub).Channel().
func (c *CachedStorage) ListenInvalidations(ctx context.Context, msgs <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.Invalidate(msg.Payload)
		}
	}
}
