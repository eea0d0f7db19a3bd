// Package store persists users and hosts in SQLite through gorm and
// exposes the typed errors the handlers branch on.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SuperuserID is the permanently privileged account. Its admin flag and
// existence cannot be altered through any mutating operation.
const SuperuserID uint = 1

var (
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrDuplicateHost      = errors.New("host configuration already exists")
	ErrNotFound           = errors.New("not found")
	ErrAuthFailure        = errors.New("invalid username or password")
	ErrForbiddenOperation = errors.New("operation forbidden for the superuser")
)

// User is a row in the users table.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	Email        string `gorm:"size:320;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:128;not null"`
	IsAdmin      bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

// Host is a row in the hosts table. The tuple (name, macaddress, port,
// ipaddress, interface) is unique across the whole table, not per user;
// the composite index is what resolves concurrent duplicate creates.
type Host struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:63;not null;uniqueIndex:uniq_host_tuple"`
	MACAddress string `gorm:"column:macaddress;size:17;not null;uniqueIndex:uniq_host_tuple"`
	Port       int    `gorm:"not null;uniqueIndex:uniq_host_tuple"`
	IPAddress  string `gorm:"column:ipaddress;size:16;not null;uniqueIndex:uniq_host_tuple"`
	Interface  string `gorm:"size:16;not null;uniqueIndex:uniq_host_tuple"`
	UserID     uint   `gorm:"index;not null"`
	CreatedAt  time.Time
}

// Store bundles the repositories sharing one gorm handle.
type Store struct {
	db    *gorm.DB
	Users *Users
	Hosts *Hosts
}

// Open opens (creating if needed) the SQLite database at path and runs
// the schema migration.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("db path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&User{}, &Host{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db, Users: &Users{db: db}, Hosts: &Hosts{db: db}}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueViolation reports whether err is a unique-constraint failure
// on the given column ("" matches any column).
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	if !strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		!errors.Is(err, gorm.ErrDuplicatedKey) {
		return false
	}
	return column == "" || strings.Contains(err.Error(), column)
}
