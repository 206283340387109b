package health

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// DatabaseChecker checks postgres connectivity
type DatabaseChecker struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewDatabaseChecker creates a new database health checker
func NewDatabaseChecker(db *sqlx.DB, timeout time.Duration) *DatabaseChecker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &DatabaseChecker{
		db:      db,
		timeout: timeout,
	}
}

// Check performs the database health check
func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return newResult("database", StatusUnhealthy, "", err, start)
	}

	stats := c.db.Stats()
	if stats.MaxOpenConnections > 0 {
		utilization := float64(stats.OpenConnections) / float64(stats.MaxOpenConnections)
		if utilization > 0.8 {
			return newResult("database", StatusDegraded, "high connection pool utilization", nil, start)
		}
	}

	return newResult("database", StatusHealthy, "connected", nil, start)
}

// Name returns the checker name
func (c *DatabaseChecker) Name() string {
	return "database"
}
