package services

import (
	"context"
	"fmt"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/infra/cache"
	"fulfillment-service/internal/pricing"
	"fulfillment-service/internal/repository"
)

func rulesKey(restaurantID uint64) string {
	return fmt.Sprintf("delivery_rules:%d", restaurantID)
}

// CachedRules serves active delivery rules through the read-through cache.
type CachedRules struct {
	repo   repository.DeliveryRuleRepository
	loader *cache.Loader
}

func NewCachedRules(repo repository.DeliveryRuleRepository, loader *cache.Loader) *CachedRules {
	return &CachedRules{repo: repo, loader: loader}
}

func (c *CachedRules) ActiveRules(ctx context.Context, restaurantID uint64) ([]domain.DeliveryRule, error) {
	return cache.ReadThrough(ctx, c.loader, rulesKey(restaurantID), func(ctx context.Context) ([]domain.DeliveryRule, error) {
		return c.repo.ActiveRules(ctx, restaurantID)
	})
}

func (c *CachedRules) Invalidate(ctx context.Context, restaurantID uint64) {
	c.loader.Invalidate(ctx, rulesKey(restaurantID))
}

type DeliveryRuleService struct {
	store  repository.Store
	loader *cache.Loader
}

func NewDeliveryRuleService(store repository.Store, loader *cache.Loader) *DeliveryRuleService {
	return &DeliveryRuleService{store: store, loader: loader}
}

// CreateRule stores a new active rule. A rule whose order range and distance
// range both intersect another active rule of the restaurant is rejected.
// The restaurant row is locked for the check so concurrent creates serialize.
func (s *DeliveryRuleService) CreateRule(ctx context.Context, restaurantID uint64, rule *domain.DeliveryRule) (*domain.DeliveryRule, error) {
	rule.ID = 0
	rule.RestaurantID = restaurantID
	rule.IsActive = true
	if err := pricing.ValidateRule(rule); err != nil {
		return nil, err
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		rest, err := tx.Catalog().LockRestaurant(ctx, restaurantID)
		if err != nil {
			return err
		}
		if rest == nil {
			return domain.ErrRestaurantNotFound
		}

		active, err := tx.DeliveryRules().ActiveRules(ctx, restaurantID)
		if err != nil {
			return err
		}
		for i := range active {
			if rule.Overlaps(&active[i]) {
				return domain.ErrRuleOverlap.WithMessage("overlaps active delivery rule %d", active[i].ID)
			}
		}
		return tx.DeliveryRules().Create(ctx, rule)
	})
	if err != nil {
		return nil, err
	}

	s.loader.Invalidate(ctx, rulesKey(restaurantID))
	return rule, nil
}

func (s *DeliveryRuleService) ListRules(ctx context.Context, restaurantID uint64) ([]domain.DeliveryRule, error) {
	return s.store.DeliveryRules().ListByRestaurant(ctx, restaurantID)
}

func (s *DeliveryRuleService) DeactivateRule(ctx context.Context, restaurantID, ruleID uint64) error {
	ok, err := s.store.DeliveryRules().Deactivate(ctx, restaurantID, ruleID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrRuleNotFound
	}
	s.loader.Invalidate(ctx, rulesKey(restaurantID))
	return nil
}
