package metrics

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// DefaultCollectInterval is how often table sizes are sampled.
const DefaultCollectInterval = 15 * time.Second

// Collector samples table row counts into the ephemera_table_count gauge.
type Collector struct {
	DB       *gorm.DB
	Tables   []schema.Tabler
	Interval time.Duration
	Logger   *slog.Logger
}

// Run samples until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultCollectInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.Collect(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Collect takes one sample of every table. Failures are logged and skipped.
func (c *Collector) Collect(ctx context.Context) {
	for _, table := range c.Tables {
		var count int64
		if err := c.DB.WithContext(ctx).Table(table.TableName()).Count(&count).Error; err != nil {
			c.Logger.Warn("failed to collect table count",
				slog.String("table", table.TableName()),
				slog.Any("error", err))
			continue
		}
		tableCount.WithLabelValues(table.TableName()).Set(float64(count))
	}
}
