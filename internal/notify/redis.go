package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nagarpalika/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// AlertsChannel is where the mail worker listens for new reports.
const AlertsChannel = "alerts:reports"

// Publisher is the part of *redis.Client the alerter uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// AlertMessage is the JSON document published for each new report.
type AlertMessage struct {
	Report         *models.Report        `json:"report"`
	Classification models.Classification `json:"classification"`
	Urgency        string                `json:"urgency"`
	SentAt         time.Time             `json:"sentAt"`
}

// RedisAlerter hands the (report, classification) pair to the mail worker over Redis pub/sub.
type RedisAlerter struct {
	Client  Publisher
	Channel string
}

func NewRedisAlerter(client Publisher) *RedisAlerter {
	return &RedisAlerter{Client: client, Channel: AlertsChannel}
}

func (a *RedisAlerter) Name() string { return "redis" }

func (a *RedisAlerter) Alert(ctx context.Context, report *models.Report) error {
	payload, err := json.Marshal(AlertMessage{
		Report:         report,
		Classification: report.AIAnalysis,
		Urgency:        Urgency(report.AIAnalysis.ThreatLevel),
		SentAt:         time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	if err := a.Client.Publish(ctx, a.Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", a.Channel, err)
	}
	return nil
}
