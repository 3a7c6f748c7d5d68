package tracking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakehouse/storefront-go/internal/domain"
	"github.com/bakehouse/storefront-go/internal/tracking/audit"
)

type fakeBackend struct {
	orders     map[int64]*domain.Order
	fetchCount int

	reorderCart *domain.Cart
	reorderErr  error
}

func (f *fakeBackend) Order(ctx context.Context, orderID int64) (*domain.Order, error) {
	f.fetchCount++
	o, ok := f.orders[orderID]
	if !ok {
		return nil, &domain.NetworkError{Op: "get order", Err: context.Canceled}
	}
	return o.Clone(), nil
}

func (f *fakeBackend) Orders(ctx context.Context) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range f.orders {
		out = append(out, o.Clone())
	}
	return out, nil
}

func (f *fakeBackend) Reorder(ctx context.Context, orderID int64) (*domain.Cart, error) {
	if f.reorderErr != nil {
		return nil, f.reorderErr
	}
	return f.reorderCart, nil
}

// mapCache is an in-memory cache.Cache; TTLs are ignored.
type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapCache() *mapCache { return &mapCache{data: map[string]string{}} }

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mapCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *mapCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mapCache) Key(operation, id string) string {
	return "test:" + operation + ":" + id
}

type memTrail struct {
	mu      sync.Mutex
	entries map[int64][]audit.Entry
}

func newMemTrail() *memTrail { return &memTrail{entries: map[int64][]audit.Entry{}} }

func (m *memTrail) Append(ctx context.Context, e *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.OrderID] = append(m.entries[e.OrderID], *e)
	return nil
}

func (m *memTrail) History(ctx context.Context, orderID int64) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Entry(nil), m.entries[orderID]...), nil
}

func shippedOrder() *domain.Order {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:        7,
		Status:    domain.StatusShipped,
		CreatedAt: base,
		StatusLog: []domain.StatusLogEntry{
			{Timestamp: base, NewStatus: domain.StatusPendingPayment, Actor: domain.ActorCustomer},
			{Timestamp: base.Add(time.Minute), NewStatus: domain.StatusProcessing, Actor: domain.ActorGateway},
			{Timestamp: base.Add(2 * time.Minute), NewStatus: domain.StatusShipped, Actor: domain.ActorAdmin},
		},
	}
}

func TestOrderServesSecondReadFromCache(t *testing.T) {
	f := &fakeBackend{orders: map[int64]*domain.Order{7: shippedOrder()}}
	svc := NewService(f, newMapCache(), nil, time.Minute)

	first, err := svc.Order(context.Background(), 7)
	require.NoError(t, err)
	second, err := svc.Order(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, f.fetchCount)
	assert.Equal(t, first.Status, second.Status)
	assert.Len(t, second.StatusLog, 3)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	f := &fakeBackend{orders: map[int64]*domain.Order{7: shippedOrder()}}
	svc := NewService(f, newMapCache(), nil, time.Minute)

	_, err := svc.Order(context.Background(), 7)
	require.NoError(t, err)
	svc.Invalidate(context.Background(), 7)
	_, err = svc.Order(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, f.fetchCount)
}

func TestHistoryIsOldestFirst(t *testing.T) {
	f := &fakeBackend{orders: map[int64]*domain.Order{7: shippedOrder()}}
	svc := NewService(f, nil, nil, 0)

	log, err := svc.History(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, domain.StatusPendingPayment, log[0].NewStatus)
	assert.Equal(t, domain.StatusShipped, log[2].NewStatus)
	for i := 1; i < len(log); i++ {
		assert.False(t, log[i].Timestamp.Before(log[i-1].Timestamp))
	}
}

func TestFetchAppendsUnseenTransitionsToTrail(t *testing.T) {
	f := &fakeBackend{orders: map[int64]*domain.Order{7: shippedOrder()}}
	trail := newMemTrail()
	svc := NewService(f, nil, trail, 0)

	_, err := svc.Order(context.Background(), 7)
	require.NoError(t, err)

	got, err := trail.History(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.Status(""), got[0].OldStatus)
	assert.Equal(t, domain.StatusPendingPayment, got[0].NewStatus)
	assert.Equal(t, domain.StatusProcessing, got[1].NewStatus)
	assert.Equal(t, domain.StatusPendingPayment, got[1].OldStatus)

	// A second fetch sees nothing new and must not duplicate rows.
	_, err = svc.Order(context.Background(), 7)
	require.NoError(t, err)
	got, _ = trail.History(context.Background(), 7)
	assert.Len(t, got, 3)
}

func TestReorderRequiresTerminalSource(t *testing.T) {
	order := shippedOrder()
	f := &fakeBackend{orders: map[int64]*domain.Order{7: order}}
	svc := NewService(f, nil, nil, 0)

	_, err := svc.Reorder(context.Background(), 7)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "order", verr.Field)
}

func TestReorderCopiesIntoActiveCart(t *testing.T) {
	order := shippedOrder()
	order.Status = domain.StatusDelivered
	f := &fakeBackend{
		orders: map[int64]*domain.Order{7: order},
		reorderCart: &domain.Cart{Order: &domain.Order{
			ID:     9,
			Status: domain.StatusCart,
			Items:  []domain.OrderItem{{ID: 50, ProductID: 3, Quantity: 2}},
		}},
	}
	c := newMapCache()
	svc := NewService(f, c, nil, time.Minute)

	cart, err := svc.Reorder(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(9), cart.ID)
	require.Len(t, cart.Items, 1)

	// The copied-into cart's cached view is stale and must be gone.
	cached, _ := c.Get(context.Background(), c.Key("order", "9"))
	assert.Empty(t, cached)
}
