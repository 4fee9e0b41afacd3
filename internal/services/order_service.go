package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/geo"
	"fulfillment-service/internal/infra/cache"
	rabbit "fulfillment-service/internal/infra/rabbitmq"
	"fulfillment-service/internal/pricing"
	"fulfillment-service/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CreateOrderInput is the checkout request. Only ids and quantities come from
// the client; every price is read from the catalog.
type CreateOrderInput struct {
	AddressID     uint64
	Items         []pricing.CartLine
	PaymentMethod domain.PaymentMethod
	CouponCode    string
	UserLat       *float64
	UserLng       *float64
}

type OrderService struct {
	store     repository.Store
	resolver  *pricing.Resolver
	loader    *cache.Loader
	publisher rabbit.PublisherInterface
	now       func() time.Time
}

func NewOrderService(store repository.Store, rules pricing.RuleSource, loader *cache.Loader, pub rabbit.PublisherInterface) *OrderService {
	return &OrderService{
		store:     store,
		resolver:  pricing.NewResolver(rules),
		loader:    loader,
		publisher: pub,
		now:       time.Now,
	}
}

func (u *OrderService) SetClock(now func() time.Time) {
	u.now = now
}

type pricedOrder struct {
	quote  pricing.Quote
	coupon *domain.Coupon
}

// Quote prices a cart exactly as CreateOrder would, without writing anything.
func (u *OrderService) Quote(ctx context.Context, userID uint64, in CreateOrderInput) (*pricing.Quote, error) {
	p, err := u.price(ctx, userID, in, false)
	if err != nil {
		return nil, err
	}
	return &p.quote, nil
}

func (u *OrderService) CreateOrder(ctx context.Context, userID uint64, in CreateOrderInput) (*domain.Order, error) {
	if !in.PaymentMethod.Valid() {
		return nil, domain.ErrInvalidPayment
	}
	p, err := u.price(ctx, userID, in, true)
	if err != nil {
		return nil, err
	}

	now := u.now()
	q := p.quote
	order := &domain.Order{
		OrderNumber:    newOrderNumber(now),
		UserID:         userID,
		RestaurantID:   q.RestaurantID,
		AddressID:      in.AddressID,
		TotalAmount:    q.Subtotal,
		DeliveryCharge: q.DeliveryCharge,
		Discount:       q.Discount,
		FinalAmount:    q.FinalAmount,
		DistanceKm:     q.DistanceKm,
		DeliveryRuleID: q.DeliveryRuleID,
		PaymentMethod:  in.PaymentMethod,
		PaymentStatus:  domain.PaymentPending,
		Status:         domain.StatusPending,
		RefundStatus:   domain.RefundNone,
		CreatedAt:      now,
		History:        []domain.OrderStatusHistory{*domain.NewHistory(0, domain.StatusPending, domain.RoleUser, "order placed")},
	}
	for _, l := range q.Lines {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:      l.ProductID,
			VariantID:      l.VariantID,
			Name:           l.Name,
			VariantName:    l.VariantName,
			Quantity:       l.Quantity,
			Price:          l.UnitPrice,
			LineTotal:      l.LineTotal,
			SelectedExtras: l.Extras,
		})
	}
	if p.coupon != nil {
		order.CouponID = &p.coupon.ID
		order.CouponCode = p.coupon.Code
	}

	err = u.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		if p.coupon == nil {
			return nil
		}
		ok, err := tx.Coupons().Consume(ctx, p.coupon.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrCouponExhausted
		}
		red := &domain.CouponRedemption{CouponID: p.coupon.ID, UserID: userID, OrderID: order.ID}
		if p.coupon.OneTimePerUser {
			red.UniqueKey = ptr(fmt.Sprintf("%d:%d", p.coupon.ID, userID))
		}
		return tx.Coupons().Redeem(ctx, red)
	})
	if err != nil {
		log.Printf("create order for user %d: %v", userID, err)
		return nil, err
	}

	publish(ctx, u.publisher, domain.EventOrderCreated, domain.OrderCreatedEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		RestaurantID:  order.RestaurantID,
		FinalAmount:   order.FinalAmount,
		PaymentMethod: order.PaymentMethod,
		CreatedAt:     order.CreatedAt,
	})
	return order, nil
}

// price loads the checkout data and prices the cart. With fresh set the
// restaurant is read from the store so a just-closed restaurant is refused.
func (u *OrderService) price(ctx context.Context, userID uint64, in CreateOrderInput, fresh bool) (*pricedOrder, error) {
	if in.AddressID == 0 {
		return nil, domain.ErrAddressRequired
	}
	if len(in.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	var (
		addr     *domain.Address
		products []domain.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := u.store.Catalog().FindAddress(gctx, in.AddressID, userID)
		addr = a
		return err
	})
	g.Go(func() error {
		ps, err := u.store.Catalog().FindProducts(gctx, productIDs(in.Items))
		products = ps
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load checkout data: %w", err)
	}
	if addr == nil {
		return nil, domain.ErrAddressNotFound
	}

	lines, err := pricing.PriceLines(in.Items, products)
	if err != nil {
		return nil, err
	}

	rest, err := u.restaurant(ctx, lines.RestaurantID, fresh)
	if err != nil {
		return nil, err
	}
	if rest == nil {
		return nil, domain.ErrRestaurantNotFound
	}
	if !rest.AcceptsOrders() {
		return nil, domain.ErrRestaurantClosed
	}

	drop, err := dropOff(in, addr)
	if err != nil {
		return nil, err
	}
	distance := drop.DistanceTo(geo.Point{Lat: rest.Lat, Lng: rest.Lng})

	out := &pricedOrder{quote: pricing.Quote{
		RestaurantID: lines.RestaurantID,
		Lines:        lines.Lines,
		Subtotal:     lines.Subtotal,
		DistanceKm:   distance,
	}}

	if code := strings.TrimSpace(in.CouponCode); code != "" {
		coupon, err := u.store.Coupons().FindByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		chk := pricing.CouponCheck{Now: u.now()}
		if coupon != nil && coupon.OneTimePerUser {
			if chk.UserRedemptions, err = u.store.Coupons().CountRedemptions(ctx, coupon.ID, userID); err != nil {
				return nil, err
			}
		}
		if out.quote.Discount, err = pricing.Discount(coupon, lines.Subtotal, chk); err != nil {
			return nil, err
		}
		out.coupon = coupon
	}

	charge, err := u.resolver.Resolve(ctx, lines.RestaurantID, lines.Subtotal, distance)
	if err != nil {
		return nil, err
	}
	out.quote.DeliveryCharge = charge.Amount
	out.quote.DeliveryRuleID = charge.RuleID

	if out.quote.FinalAmount, err = pricing.FinalAmount(lines.Subtotal, charge.Amount, out.quote.Discount); err != nil {
		return nil, err
	}
	return out, nil
}

func (u *OrderService) restaurant(ctx context.Context, id uint64, fresh bool) (*domain.Restaurant, error) {
	if fresh {
		return u.store.Catalog().FindRestaurant(ctx, id)
	}
	return cache.ReadThrough(ctx, u.loader, fmt.Sprintf("restaurant:%d", id), func(ctx context.Context) (*domain.Restaurant, error) {
		return u.store.Catalog().FindRestaurant(ctx, id)
	})
}

// dropOff prefers the live coordinates sent with the request and falls back
// to the saved address. A half-sent pair is refused rather than ignored.
func dropOff(in CreateOrderInput, addr *domain.Address) (geo.Point, error) {
	switch {
	case in.UserLat != nil && in.UserLng != nil:
		return checkedPoint(*in.UserLat, *in.UserLng)
	case in.UserLat != nil || in.UserLng != nil:
		return geo.Point{}, domain.ErrMissingCoordinates.WithMessage("userLat and userLng must be sent together")
	case addr.Lat != nil && addr.Lng != nil:
		return checkedPoint(*addr.Lat, *addr.Lng)
	}
	return geo.Point{}, domain.ErrMissingCoordinates
}

func checkedPoint(lat, lng float64) (geo.Point, error) {
	p := geo.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return geo.Point{}, domain.ErrInvalidCoordinates
	}
	return p, nil
}

func productIDs(lines []pricing.CartLine) []uint64 {
	seen := make(map[uint64]bool, len(lines))
	ids := make([]uint64, 0, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	return ids
}

// newOrderNumber is ORD-<yyyymmdd>-<8 hex chars>.
func newOrderNumber(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), id[:8])
}

func (u *OrderService) GetOrder(ctx context.Context, userID, orderID uint64) (*domain.Order, error) {
	o, err := u.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (u *OrderService) ListOrders(ctx context.Context, userID uint64) ([]domain.Order, error) {
	return u.store.Orders().ListByUser(ctx, userID)
}
