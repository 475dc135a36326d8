// Package gormdb implements the repository interfaces on top of GORM.
//
// One Store wraps the shared *gorm.DB pool (which is safe for concurrent use)
// and hands out typed views per concern:
//
//	store.Users()     → repository.UserRepository
//	store.Records()   → repository.RecordRepository
//	store.Dashboard() → repository.DashboardRepository
//
// The same code runs against SQLite, PostgreSQL and MySQL; the dialect is
// chosen when the pool is opened (see internal/database).
package gormdb

import (
	"context"

	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Users() *UserStore {
	return &UserStore{db: s.db}
}

func (s *Store) Records() *RecordStore {
	return &RecordStore{db: s.db}
}

func (s *Store) Dashboard() *DashboardStore {
	return &DashboardStore{db: s.db}
}

// Ping is used by the health check.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
