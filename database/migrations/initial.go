package migrations

import (
	"gorm.io/gorm"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/pkg/migration"
)

func init() {
	migration.Register("20260301000000_create_files_table", &CreateFilesTable{})
	migration.Register("20260301000001_create_customers_table", &CreateCustomersTable{})
	migration.Register("20260301000002_create_orders_table", &CreateOrdersTable{})
	migration.Register("20260301000003_create_cart_positions_table", &CreateCartPositionsTable{})
	migration.Register("20260301000004_create_complaints_table", &CreateComplaintsTable{})
}

// -------- 0001: files --------

type CreateFilesTable struct{}

func (m *CreateFilesTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.File{})
}

func (m *CreateFilesTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("files")
}

// -------- 0002: customers --------

type CreateCustomersTable struct{}

func (m *CreateCustomersTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Customer{})
}

func (m *CreateCustomersTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("customers")
}

// -------- 0003: orders --------

type CreateOrdersTable struct{}

func (m *CreateOrdersTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Order{}, &models.OrderLine{})
}

func (m *CreateOrdersTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("order_lines", "orders")
}

// -------- 0004: cart positions --------

type CreateCartPositionsTable struct{}

func (m *CreateCartPositionsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.CartPosition{})
}

func (m *CreateCartPositionsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("cart_positions")
}

// -------- 0005: complaints --------

type CreateComplaintsTable struct{}

func (m *CreateComplaintsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Complaint{})
}

func (m *CreateComplaintsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("complaints")
}
