package domain

import (
	"time"
)

// DimDate is keyed deterministically by YYYYMMDD, so rows can be inserted by
// any job without surrogate-key contention.
type DimDate struct {
	DateKey   int       `gorm:"column:date_key;primaryKey" json:"date_key"`
	DateValue time.Time `gorm:"column:date_value;type:date;not null;uniqueIndex" json:"date_value"`

	Year        int    `gorm:"column:year;not null" json:"year"`
	Quarter     int    `gorm:"column:quarter;not null" json:"quarter"`
	Month       int    `gorm:"column:month;not null" json:"month"`
	Week        int    `gorm:"column:week;not null" json:"week"`
	DayOfYear   int    `gorm:"column:day_of_year;not null" json:"day_of_year"`
	DayOfMonth  int    `gorm:"column:day_of_month;not null" json:"day_of_month"`
	DayOfWeek   int    `gorm:"column:day_of_week;not null" json:"day_of_week"`
	MonthName   string `gorm:"column:month_name;size:20;not null" json:"month_name"`
	DayName     string `gorm:"column:day_name;size:20;not null" json:"day_name"`
	QuarterName string `gorm:"column:quarter_name;size:10;not null" json:"quarter_name"`
	IsWeekend   bool   `gorm:"column:is_weekend;not null;default:false" json:"is_weekend"`
	IsHoliday   bool   `gorm:"column:is_holiday;not null;default:false" json:"is_holiday"`
}

func (DimDate) TableName() string { return "dim_date" }

// DimCustomer is versioned SCD2 on country. For every customer_id exactly one
// row has is_current = true; expired rows carry a non-null expiry_date.
type DimCustomer struct {
	CustomerKey int64  `gorm:"column:customer_key;primaryKey;autoIncrement" json:"customer_key"`
	CustomerID  string `gorm:"column:customer_id;size:50;not null;index:idx_dim_customer_current,unique,where:is_current" json:"customer_id"`
	Country     string `gorm:"column:country;size:100;not null" json:"country"`

	EffectiveDate time.Time  `gorm:"column:effective_date;not null" json:"effective_date"`
	ExpiryDate    *time.Time `gorm:"column:expiry_date" json:"expiry_date,omitempty"`
	IsCurrent     bool       `gorm:"column:is_current;not null;default:true;index" json:"is_current"`

	CreatedAt  time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
	DataSource string    `gorm:"column:data_source;size:50;not null;default:CSV" json:"data_source"`
}

func (DimCustomer) TableName() string { return "dim_customer" }

// DimProduct is SCD1: mutable attributes are overwritten in place and
// version_created_at is bumped. No history rows.
type DimProduct struct {
	ProductKey  int64  `gorm:"column:product_key;primaryKey;autoIncrement" json:"product_key"`
	StockCode   string `gorm:"column:stock_code;size:50;not null;uniqueIndex" json:"stock_code"`
	Description string `gorm:"column:description;size:255;not null" json:"description"`
	Category    string `gorm:"column:category;size:100" json:"category,omitempty"`
	Subcategory string `gorm:"column:subcategory;size:100" json:"subcategory,omitempty"`

	IsActive bool `gorm:"column:is_active;not null;default:true" json:"is_active"`
	IsGift   bool `gorm:"column:is_gift;not null;default:false" json:"is_gift"`

	VersionCreatedAt *time.Time `gorm:"column:version_created_at" json:"version_created_at,omitempty"`
	CreatedAt        time.Time  `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
	DataSource       string     `gorm:"column:data_source;size:50;not null;default:CSV" json:"data_source"`
}

func (DimProduct) TableName() string { return "dim_product" }
