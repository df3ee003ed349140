package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MedicineFixture represents test product master data
type MedicineFixture struct {
	ID       string
	Name     string
	HSNCode  string
	GSTRate  decimal.Decimal
	Unit     string
	MRP      decimal.Decimal
	Stock    int
	MinStock int
}

// BatchFixture represents test purchase batch data
type BatchFixture struct {
	ID           string
	BillID       string
	MedicineID   string
	BatchNo      string
	ExpiryDate   *time.Time
	Quantity     int
	SoldQty      int
	PurchaseRate decimal.Decimal
	MRP          decimal.Decimal
	Unit         string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

func (f *FixtureFactory) next() int {
	f.sequence++
	return f.sequence
}

// Medicine creates a medicine fixture
func (f *FixtureFactory) Medicine(overrides ...func(*MedicineFixture)) *MedicineFixture {
	n := f.next()
	m := &MedicineFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Medicine %d", n),
		HSNCode:  fmt.Sprintf("3004%04d", n),
		GSTRate:  decimal.NewFromInt(12),
		Unit:     "strip",
		MRP:      decimal.NewFromFloat(49.50),
		Stock:    0,
		MinStock: 10,
	}
	for _, o := range overrides {
		o(m)
	}
	return m
}

// Batch creates a purchase batch fixture for the given medicine
func (f *FixtureFactory) Batch(medicineID string, overrides ...func(*BatchFixture)) *BatchFixture {
	n := f.next()
	expiry := time.Now().UTC().AddDate(1, 0, 0).Truncate(24 * time.Hour)
	b := &BatchFixture{
		ID:           uuid.New().String(),
		BillID:       uuid.New().String(),
		MedicineID:   medicineID,
		BatchNo:      fmt.Sprintf("BN-%04d", n),
		ExpiryDate:   &expiry,
		Quantity:     100,
		SoldQty:      0,
		PurchaseRate: decimal.NewFromFloat(32.00),
		MRP:          decimal.NewFromFloat(49.50),
		Unit:         "strip",
	}
	for _, o := range overrides {
		o(b)
	}
	return b
}

// ExpiringIn returns an expiry date the given number of days from now,
// truncated to a whole day so assertions stay stable.
func ExpiringIn(days int) *time.Time {
	d := time.Now().UTC().AddDate(0, 0, days).Truncate(24 * time.Hour)
	return &d
}
