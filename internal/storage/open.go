package storage

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open builds the store selected by driver ("postgres" or "memory") and wraps
// it in a read-through cache when cacheTTL is positive.
func Open(driver, dsn string, cacheTTL time.Duration) (Storage, error) {
	var s Storage
	switch driver {
	case "postgres":
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect PostgreSQL: %w", err)
		}
		svc := NewStorageService(db)
		if err := svc.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Println("INFO: PostgreSQL connection established, migrations complete")
		s = svc
	case "memory":
		log.Println("WARN: using in-memory report store, reports are lost on restart")
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	if cacheTTL > 0 {
		s = NewCachedStorage(s, cacheTTL)
	}
	return s, nil
}
