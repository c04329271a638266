package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FactSale is one line-item transaction tied to resolved surrogate keys.
// line_total always equals quantity * unit_price at two decimal places.
type FactSale struct {
	SalesKey    int64 `gorm:"column:sales_key;primaryKey;autoIncrement" json:"sales_key"`
	DateKey     int   `gorm:"column:date_key;not null;index" json:"date_key"`
	CustomerKey int64 `gorm:"column:customer_key;not null;index" json:"customer_key"`
	ProductKey  int64 `gorm:"column:product_key;not null;index" json:"product_key"`

	InvoiceNo       int64           `gorm:"column:invoice_no;not null;index" json:"invoice_no"`
	TransactionType string          `gorm:"column:transaction_type;size:32;not null" json:"transaction_type"`
	Quantity        int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null" json:"unit_price"`
	LineTotal       decimal.Decimal `gorm:"column:line_total;type:numeric(15,2);not null" json:"line_total"`

	TransactionAt time.Time `gorm:"column:transaction_at;not null" json:"transaction_at"`

	BatchID   uuid.UUID `gorm:"type:uuid;column:batch_id;not null;index" json:"batch_id"`
	VersionID uuid.UUID `gorm:"type:uuid;column:version_id;not null;index" json:"version_id"`

	CreatedAt  time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	DataSource string    `gorm:"column:data_source;size:50;not null;default:CSV" json:"data_source"`
}

func (FactSale) TableName() string { return "fact_sales" }
