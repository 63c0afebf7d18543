package runstore

import (
	"fmt"
	"strings"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// Open returns the run store selected by config. The "none" driver, or an
// empty one, returns a nil store and no error.
func Open(config domain.StoreConfig) (domain.RunStore, error) {
	switch strings.ToLower(strings.TrimSpace(config.Driver)) {
	case "", "none":
		return nil, nil
	case "sqlite":
		if config.SQLitePath == "" {
			return nil, fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
		return NewSQLiteStore(config.SQLitePath)
	case "postgres":
		if config.PostgresURL == "" {
			return nil, fmt.Errorf("store.postgres_url is required for the postgres driver")
		}
		return NewPostgresStoreFromURL(config.PostgresURL)
	default:
		return nil, fmt.Errorf("unsupported run store driver: %s", config.Driver)
	}
}
