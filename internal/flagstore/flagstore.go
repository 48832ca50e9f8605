// Package flagstore persists the per-(cycle, report) advancement flag that makes
// workflow reconciliation idempotent across reloads and restarts.
package flagstore

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/qs3c/regflow_go_server/config"
	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/repository"
)

// Store is the injected key-value capability: Get/Set per (cycle, report), Delete for resets.
type Store interface {
	Get(ctx context.Context, key model.ReportKey) (bool, error)
	Set(ctx context.Context, key model.ReportKey, advanced bool) error
	Delete(ctx context.Context, key model.ReportKey) error
}

// Entry is one stored flag, for listing.
type Entry struct {
	Key      model.ReportKey `json:"key"`
	Advanced bool            `json:"advanced"`
}

// Lister is implemented by stores that can enumerate their flags.
type Lister interface {
	List(ctx context.Context) ([]Entry, error)
}

// New selects a driver from config. rdb or db may be nil when their driver is not selected.
func New(cfg config.FlagStoreConfig, rdb *redis.Client, db *gorm.DB) (Store, error) {
	switch cfg.Driver {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("flag store driver redis requires a redis client")
		}
		return NewRedisStore(rdb, cfg.KeyPrefix), nil
	case "database":
		if db == nil {
			return nil, fmt.Errorf("flag store driver database requires a database")
		}
		return NewDBStore(repository.NewFlagRepository(db)), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported flag store driver %q", cfg.Driver)
	}
}
