package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type sampleCustomer struct {
	name        string
	phone       string
	address     string
	packageName string
	monthlyFee  int64
	carriedDebt int64
	status      string
}

// Packages offered by the default installation. "Putus" is a disconnected
// line that only carries old debt.
var sampleCustomers = []sampleCustomer{
	{"Budi Santoso", "6281234567801", "Jl. Melati 1", "10 Mbps", 150000, 0, "active"},
	{"Siti Aminah", "6281234567802", "Jl. Mawar 7", "20 Mbps", 200000, 300000, "active"},
	{"Agus Wijaya", "6281234567803", "Jl. Kenanga 3", "30 Mbps", 250000, 0, "active"},
	{"Dewi Lestari", "6281234567804", "Jl. Anggrek 12", "Putus", 0, 125000, "active"},
	{"Rudi Hartono", "6281234567805", "Jl. Dahlia 5", "10 Mbps", 150000, 0, "suspended"},
}

// EnsureSampleCustomers inserts demo customers when the customers table is empty.
func EnsureSampleCustomers(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Raw(`SELECT COUNT(1) FROM customers`).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		for _, c := range sampleCustomers {
			err := tx.Exec(
				`INSERT INTO customers (id, name, phone, address, package_name, monthly_fee, carried_debt, status, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				node.Generate(), c.name, c.phone, c.address, c.packageName,
				c.monthlyFee, c.carriedDebt, c.status, now, now,
			).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
