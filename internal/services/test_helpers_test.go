package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"fulfillment-service/internal/domain"
	infradb "fulfillment-service/internal/infra/mysql"
	"fulfillment-service/internal/repository"
	mysqlrepo "fulfillment-service/internal/repository/mysql"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	TestUserID    = uint64(7)
	TestOrderID   = uint64(100)
	TestPartnerID = uint64(3)
	TestFinal     = int64(117)
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func CreateMockOrder(id uint64, status domain.OrderStatus, method domain.PaymentMethod, paid domain.PaymentStatus) *domain.Order {
	return &domain.Order{
		ID:            id,
		OrderNumber:   fmt.Sprintf("ORD-20260314-%08d", id),
		UserID:        TestUserID,
		RestaurantID:  10,
		AddressID:     20,
		TotalAmount:   130,
		Discount:      13,
		FinalAmount:   TestFinal,
		PaymentMethod: method,
		PaymentStatus: paid,
		Status:        status,
		RefundStatus:  domain.RefundNone,
		CreatedAt:     testNow,
	}
}

func CreateMockPayment(id, orderID uint64, status domain.PaymentStatus) *domain.Payment {
	return &domain.Payment{
		ID:             id,
		UserID:         TestUserID,
		ReferenceType:  domain.ReferenceOrder,
		ReferenceID:    orderID,
		OrderID:        &orderID,
		Amount:         TestFinal,
		Currency:       "INR",
		Status:         status,
		GatewayOrderID: fmt.Sprintf("pay-%d", id),
	}
}

func CreateMockPartner(id uint64) *domain.DeliveryPartner {
	return &domain.DeliveryPartner{
		ID:              id,
		Name:            "Ravi",
		CommissionType:  domain.DiscountPercentage,
		CommissionValue: decimal.NewFromInt(10),
		ActiveOrders:    1,
	}
}

// newSQLiteStore opens a private in-memory database with the full schema.
func newSQLiteStore(t *testing.T) (repository.Store, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), infradb.Config())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, infradb.Migrate(db))
	t.Cleanup(func() { sqlDB.Close() })
	return mysqlrepo.NewStore(db), db
}
