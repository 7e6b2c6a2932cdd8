// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

// Package db provides the gorm-backed persistence layer behind the
// certificate store: a key-identifier-keyed table of trusted
// certificates, selectable between sqlite and postgres.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// CertificateRecord is the gorm model backing the certificate store:
// one row per accepted certificate, keyed by its key identifier's
// canonical text form.
type CertificateRecord struct {
	KeyID     string `gorm:"primaryKey;column:key_id"`
	DER       []byte `gorm:"column:der"`
	CreatedAt time.Time
}

func (CertificateRecord) TableName() string { return "certificates" }

// DB wraps a gorm handle opened against one of the two supported backends.
type DB struct {
	*gorm.DB
}

// Open opens a database connection per dbType ("sqlite" or "postgres")
// and dsn.
func Open(dbType, dsn string) (*DB, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("db: unsupported database type %q (must be \"sqlite\" or \"postgres\")", dbType)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("db: opening %s database: %w", dbType, err)
	}
	return &DB{DB: gdb}, nil
}

// Migrate creates or updates the schema for all models this package owns.
func (d *DB) Migrate() error {
	return d.AutoMigrate(&CertificateRecord{})
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
