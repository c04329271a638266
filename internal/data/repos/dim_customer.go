package repos

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

type DimCustomerRepo interface {
	GetCurrent(dbc dbctx.Context, customerID string) (*types.DimCustomer, error)
	// EnsureCurrent inserts a first current row for the natural key, or returns
	// the existing current row when one is already present. Atomic: two
	// concurrent callers for the same new key converge on a single row.
	EnsureCurrent(dbc dbctx.Context, row *types.DimCustomer) (*types.DimCustomer, error)
	// Rotate expires the current row and inserts a replacement with a fresh
	// validity interval, all inside one transaction.
	Rotate(dbc dbctx.Context, oldKey int64, replacement *types.DimCustomer) (*types.DimCustomer, error)
	CurrentCount(dbc dbctx.Context, customerID string) (int64, error)
}

type dimCustomerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDimCustomerRepo(db *gorm.DB, baseLog *logger.Logger) DimCustomerRepo {
	return &dimCustomerRepo{db: db, log: baseLog.With("repo", "DimCustomerRepo")}
}

func (r *dimCustomerRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *dimCustomerRepo) GetCurrent(dbc dbctx.Context, customerID string) (*types.DimCustomer, error) {
	if customerID == "" {
		return nil, nil
	}
	var row types.DimCustomer
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("customer_id = ? AND is_current = ?", customerID, true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *dimCustomerRepo) EnsureCurrent(dbc dbctx.Context, row *types.DimCustomer) (*types.DimCustomer, error) {
	tx := r.handle(dbc).WithContext(dbc.Ctx)
	res := tx.Clauses(clause.OnConflict{
		Columns:     []clause.Column{{Name: "customer_id"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{gorm.Expr("is_current")}},
		DoNothing:   true,
	}).Create(row)
	if res.Error != nil {
		return nil, res.Error
	}
	if row.CustomerKey != 0 && res.RowsAffected > 0 {
		return row, nil
	}
	// Lost the insert race or the key already existed: read the winner.
	return r.GetCurrent(dbc, row.CustomerID)
}

func (r *dimCustomerRepo) Rotate(dbc dbctx.Context, oldKey int64, replacement *types.DimCustomer) (*types.DimCustomer, error) {
	tx := r.handle(dbc).WithContext(dbc.Ctx)
	now := time.Now().UTC()
	err := tx.Transaction(func(txx *gorm.DB) error {
		res := txx.Model(&types.DimCustomer{}).
			Where("customer_key = ? AND is_current = ?", oldKey, true).
			Updates(map[string]interface{}{
				"is_current":  false,
				"expiry_date": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		replacement.IsCurrent = true
		replacement.EffectiveDate = now
		replacement.ExpiryDate = nil
		return txx.Create(replacement).Error
	})
	if err != nil {
		return nil, err
	}
	return replacement, nil
}

func (r *dimCustomerRepo) CurrentCount(dbc dbctx.Context, customerID string) (int64, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.DimCustomer{}).
		Where("customer_id = ? AND is_current = ?", customerID, true).
		Count(&count).Error
	return count, err
}
