// Package app wires configuration, infrastructure and services for the
// binaries under cmd/.
package app

import (
	"log"

	"fulfillment-service/internal/config"
	"fulfillment-service/internal/infra/cache"
	"fulfillment-service/internal/infra/gateway"
	infradb "fulfillment-service/internal/infra/mysql"
	rabbit "fulfillment-service/internal/infra/rabbitmq"
	"fulfillment-service/internal/repository"
	mysqlrepo "fulfillment-service/internal/repository/mysql"
	"fulfillment-service/internal/services"

	"gorm.io/gorm"
)

type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      repository.Store
	Orders     *services.OrderService
	Lifecycle  *services.LifecycleService
	Payments   *services.PaymentService
	Rules      *services.DeliveryRuleService
	Reconciler *services.Reconciler

	closers []func()
}

func New(cfg *config.Config) (*App, error) {
	db, err := infradb.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db, Store: mysqlrepo.NewStore(db)}
	a.closers = append(a.closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	var c cache.Cache
	if cfg.RedisURL != "" {
		rc, err := cache.Initialize(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { rc.Close() })
		c = rc
	} else {
		log.Println("REDIS_URL not set, using in-process cache")
		c = cache.NewMemoryCache()
	}
	loader := cache.NewLoader(c, cfg.CacheTTL)

	var pub rabbit.PublisherInterface = rabbit.LogPublisher{}
	if cfg.RabbitMQURL != "" {
		p, err := rabbit.NewPublisher(cfg.RabbitMQURL, cfg.EventExchange)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		pub = p
	} else {
		log.Println("RABBITMQ_URL not set, events are only logged")
	}

	gw := gateway.NewHTTPClient(gateway.Config{
		BaseURL:      cfg.Gateway.BaseURL,
		ClientID:     cfg.Gateway.ClientID,
		ClientSecret: cfg.Gateway.ClientSecret,
		APIVersion:   cfg.Gateway.APIVersion,
		Timeout:      cfg.Gateway.Timeout,
		MaxRetries:   cfg.Gateway.MaxRetries,
	})

	rules := services.NewCachedRules(a.Store.DeliveryRules(), loader)
	a.Orders = services.NewOrderService(a.Store, rules, loader, pub)
	a.Lifecycle = services.NewLifecycleService(a.Store, gw, pub)
	a.Payments = services.NewPaymentService(a.Store, gw, pub, cfg.Currency, cfg.Gateway.WebhookSecret)
	a.Rules = services.NewDeliveryRuleService(a.Store, loader)
	a.Reconciler = services.NewReconciler(a.Store, gw, a.Lifecycle, a.Payments, cfg.ReconcileAfter, cfg.ReconcileBatch)
	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
