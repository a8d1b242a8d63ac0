//go:generate mockgen -destination=mock_store/mock_store.go -package=mock_store github.com/rmacdonaldsmith/websubhub/pkg/subscription Store

// Package store provides implementations of subscription.Store.
package store

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/websubhub/pkg/subscription"
)

// Open returns the store for the configured driver. The "memory" driver ignores connect.
func Open(driver, connect string, log logrus.FieldLogger) (subscription.Store, error) {
	switch driver {
	case "", "memory":
		log.Info("Using in-memory subscription store")
		return NewMemory(), nil
	case "sqlite3", "postgres":
		return OpenSQL(driver, connect, log)
	default:
		return nil, errors.Errorf("cannot provide a store for driver '%s'", driver)
	}
}
