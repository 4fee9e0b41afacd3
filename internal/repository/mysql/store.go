package mysql

import (
	"context"

	"fulfillment-service/internal/repository"

	"gorm.io/gorm"
)

type store struct {
	db *gorm.DB
}

// NewStore returns a gorm backed repository.Store. The same code serves
// MySQL, Postgres and SQLite connections.
func NewStore(db *gorm.DB) repository.Store {
	return &store{db: db}
}

func (s *store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&store{db: tx})
	})
}

func (s *store) Orders() repository.OrderRepository               { return &orderRepo{db: s.db} }
func (s *store) Catalog() repository.CatalogRepository            { return &catalogRepo{db: s.db} }
func (s *store) DeliveryRules() repository.DeliveryRuleRepository { return &ruleRepo{db: s.db} }
func (s *store) Coupons() repository.CouponRepository             { return &couponRepo{db: s.db} }
func (s *store) Payments() repository.PaymentRepository           { return &paymentRepo{db: s.db} }
func (s *store) Partners() repository.PartnerRepository           { return &partnerRepo{db: s.db} }
func (s *store) Earnings() repository.EarningRepository           { return &earningRepo{db: s.db} }

var _ repository.Store = (*store)(nil)
