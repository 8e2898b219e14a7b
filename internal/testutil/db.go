// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/repository/sqldb"
)

var seq atomic.Int64

// NewDB returns a migrated in-memory sqlite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, sqldb.AutoMigrate(db))
	return db
}

// CreateUser inserts an active user named name.
func CreateUser(t *testing.T, db *gorm.DB, name string, mutate ...func(*model.User)) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", Password: "x", IsActive: true}
	for _, fn := range mutate {
		fn(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func Staff(u *model.User)     { u.IsStaff = true }
func Superuser(u *model.User) { u.IsSuperuser = true }
func Bot(u *model.User)       { u.IsBot = true }

// CreateProject inserts p and returns it.
func CreateProject(t *testing.T, db *gorm.DB, p *model.Project) *model.Project {
	t.Helper()
	if p.Name == "" {
		p.Name = string(p.Type)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
