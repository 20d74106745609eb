package application_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	addressapp "github.com/wyfcoding/storefront/internal/address/application"
	addressdomain "github.com/wyfcoding/storefront/internal/address/domain"
	addresspersistence "github.com/wyfcoding/storefront/internal/address/infrastructure/persistence"
	cartapp "github.com/wyfcoding/storefront/internal/cart/application"
	cartdomain "github.com/wyfcoding/storefront/internal/cart/domain"
	cartpersistence "github.com/wyfcoding/storefront/internal/cart/infrastructure/persistence"
	catalog "github.com/wyfcoding/storefront/internal/catalog/domain"
	catalogpersistence "github.com/wyfcoding/storefront/internal/catalog/infrastructure/persistence"
	"github.com/wyfcoding/storefront/internal/order/application"
	"github.com/wyfcoding/storefront/internal/order/domain"
	"github.com/wyfcoding/storefront/internal/order/infrastructure/persistence"
	payment "github.com/wyfcoding/storefront/internal/payment/domain"
	"github.com/wyfcoding/storefront/internal/payment/infrastructure/stripe"
	"github.com/wyfcoding/storefront/pkg/cache"
	"github.com/wyfcoding/storefront/pkg/db"
	"github.com/wyfcoding/storefront/pkg/db/dbtest"
	"github.com/wyfcoding/storefront/pkg/outbox"
)

const webhookSecret = "whsec_test"

// fakeProvider 内存中的支付服务商
type fakeProvider struct {
	mu        sync.Mutex
	seq       int
	sessions  map[string]*payment.CheckoutSession
	requests  []payment.CreateSessionRequest
	createErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: make(map[string]*payment.CheckoutSession)}
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, req payment.CreateSessionRequest) (*payment.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.seq++
	var total int64
	for _, it := range req.LineItems {
		total += it.UnitAmountInCents * it.Quantity
	}
	sess := &payment.CheckoutSession{
		ID:                fmt.Sprintf("cs_test_%d", p.seq),
		Status:            "open",
		PaymentStatus:     payment.PaymentStatusUnpaid,
		AmountTotal:       total,
		Currency:          req.Currency,
		ClientReferenceID: req.ClientReferenceID,
		Metadata:          req.Metadata,
	}
	sess.URL = "https://checkout.example/" + sess.ID
	p.sessions[sess.ID] = sess
	return sess, nil
}

func (p *fakeProvider) RetrieveCheckoutSession(_ context.Context, id string) (*payment.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[id]
	if !ok {
		return nil, &payment.ProviderError{Category: payment.CategoryRejected, StatusCode: 404, Message: "no such session"}
	}
	cp := *sess
	return &cp, nil
}

func (p *fakeProvider) pay(id string) *payment.CheckoutSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess := p.sessions[id]
	sess.Status = "complete"
	sess.PaymentStatus = payment.PaymentStatusPaid
	cp := *sess
	return &cp
}

type sequence struct {
	mu sync.Mutex
	n  int
}

func (s *sequence) NextOrderNumber() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("SF-TEST%04d", s.n)
}

type fixture struct {
	db           *db.DB
	provider     *fakeProvider
	redis        *miniredis.Miniredis
	carts        *cartapp.CartService
	addresses    *addressapp.AddressService
	orders       domain.OrderRepository
	checkout     *application.CheckoutService
	confirmation *application.ConfirmationService
	query        *application.OrderQueryService
	sweeper      *application.ExpirySweeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := dbtest.New(t,
		&catalog.Product{}, &catalog.ProductVariant{},
		&cartdomain.Cart{}, &cartdomain.CartItem{},
		&addressdomain.ShippingAddress{},
		&domain.Order{}, &domain.OrderItem{}, &domain.ProcessedWebhookEvent{},
		&outbox.Message{},
	)
	require.NoError(t, d.Create(&catalog.Product{ID: "p-1", Name: "Tee", Slug: "tee"}).Error)
	require.NoError(t, d.Create(&catalog.ProductVariant{ID: "v-a", ProductID: "p-1", Name: "A", PriceInCents: 15000}).Error)
	require.NoError(t, d.Create(&catalog.ProductVariant{ID: "v-b", ProductID: "p-1", Name: "B", PriceInCents: 8000}).Error)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	publisher := outbox.NewPublisher(d, "storefront.")
	addresses := addressapp.NewAddressService(addresspersistence.NewAddressRepository(d))
	carts := cartapp.NewCartService(d, cartpersistence.NewCartRepository(d),
		catalogpersistence.NewVariantRepository(d), addresses, publisher, "brl")
	orders := persistence.NewOrderRepository(d)
	provider := newFakeProvider()

	f := &fixture{
		db:        d,
		provider:  provider,
		redis:     mr,
		carts:     carts,
		addresses: addresses,
		orders:    orders,
	}
	f.checkout = application.NewCheckoutService(d, orders, carts, addresses, provider, publisher,
		&sequence{}, cache.NewFromClient(rdb), nil, application.CheckoutConfig{
			Currency:        "brl",
			PublicURL:       "http://shop.test/",
			ProviderTimeout: time.Second,
			LockTTL:         time.Minute,
		})
	f.confirmation = application.NewConfirmationService(d, orders, provider,
		stripe.NewWebhookVerifier(webhookSecret, 5*time.Minute),
		application.NewOrderMaterializer(carts, nil), publisher, nil, time.Second)
	f.query = application.NewOrderQueryService(orders)
	f.sweeper = application.NewExpirySweeper(d, orders, publisher, nil, 25*time.Hour, time.Minute)
	return f
}

func (f *fixture) createAddress(t *testing.T, userID string) string {
	t.Helper()
	a, err := f.addresses.Create(context.Background(), addressapp.CreateAddressCommand{
		UserID:        userID,
		RecipientName: "Ana Souza",
		Street:        "Rua das Flores",
		Number:        "100",
		Neighborhood:  "Centro",
		City:          "São Paulo",
		State:         "SP",
		ZipCode:       "01000-000",
		Phone:         "+5511999990000",
		Email:         "ana@example.com",
		TaxID:         "123.456.789-09",
	})
	require.NoError(t, err)
	return a.ID
}

func (f *fixture) fillCart(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, cartapp.AddItemCommand{UserID: userID, VariantID: "v-a", Quantity: 1})
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, cartapp.AddItemCommand{UserID: userID, VariantID: "v-b", Quantity: 2})
	require.NoError(t, err)
}

// webhook 构造并签名一个 webhook 请求体
func webhook(t *testing.T, eventID, eventType string, sess *payment.CheckoutSession) ([]byte, string) {
	t.Helper()
	body := map[string]any{
		"id":      eventID,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":                  sess.ID,
				"status":              sess.Status,
				"payment_status":      sess.PaymentStatus,
				"amount_total":        sess.AmountTotal,
				"currency":            sess.Currency,
				"client_reference_id": sess.ClientReferenceID,
				"metadata":            sess.Metadata,
			},
		},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	return payload, stripe.Sign(webhookSecret, payload, time.Now())
}

func (f *fixture) countOutbox(t *testing.T, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&outbox.Message{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}
