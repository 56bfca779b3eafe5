// Package health reports whether the API can reach its dependencies.
package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health checks.
type Service struct {
	DB      Pinger
	Timeout time.Duration
}

// NewService constructs a health service. db may be nil when records are
// kept in memory.
func NewService(db Pinger) *Service {
	return &Service{DB: db, Timeout: 2 * time.Second}
}

// Status reports overall health and per-dependency detail.
func (s *Service) Status(ctx context.Context) (bool, map[string]string) {
	checks := map[string]string{"database": "memory"}
	if s.DB == nil {
		return true, checks
	}
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		checks["database"] = "unreachable"
		return false, checks
	}
	checks["database"] = "ok"
	return true, checks
}
