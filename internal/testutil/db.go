// Package testutil provides an in-memory billing database for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/netbill/internal/migration"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var memdbSeq atomic.Int64

// NewDB returns an isolated in-memory sqlite database with the billing schema.
// A single connection is used so concurrent callers serialize on it.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:netbill_%d?mode=memory&cache=shared", memdbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.ApplySQLite(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func NewNode(t testing.TB, n int64) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(n)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

type CustomerSeed struct {
	Name        string
	Phone       string
	PackageName string
	MonthlyFee  int64
	CarriedDebt int64
	Status      string
}

// InsertCustomer writes a customer row directly and returns its id.
func InsertCustomer(t testing.TB, db *gorm.DB, node *snowflake.Node, c CustomerSeed) snowflake.ID {
	t.Helper()

	if c.Status == "" {
		c.Status = "active"
	}
	if c.Name == "" {
		c.Name = "customer"
	}
	id := node.Generate()
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO customers (id, name, phone, address, package_name, monthly_fee, carried_debt, status, created_at, updated_at)
		 VALUES (?, ?, ?, '', ?, ?, ?, ?, ?, ?)`,
		id, c.Name, c.Phone, c.PackageName, c.MonthlyFee, c.CarriedDebt, c.Status, now, now,
	).Error
	if err != nil {
		t.Fatalf("insert customer: %v", err)
	}
	return id
}

// Count returns the number of rows in table.
func Count(t testing.TB, db *gorm.DB, table string) int64 {
	t.Helper()
	var count int64
	if err := db.Table(table).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
