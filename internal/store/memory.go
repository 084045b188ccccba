package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/hotslice/internal/models"
)

// MemoryStore is an OrderStore and AnalyticsCache held in process memory. It
// is used by tests and by STORE_DRIVER=memory; it gives the same versioning
// guarantees as GormStore within a single instance.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    uint64
	nextItem  uint64
	nextHist  uint64
	orders    map[uint64]*models.Order
	byNumber  map[string]uint64
	byKey     map[string]uint64
	history   map[uint64][]models.OrderStatusHistory
	analytics map[string]*models.DailyAnalytics
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:    make(map[uint64]*models.Order),
		byNumber:  make(map[string]uint64),
		byKey:     make(map[string]uint64),
		history:   make(map[uint64][]models.OrderStatusHistory),
		analytics: make(map[string]*models.DailyAnalytics),
		now:       time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, o *models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byNumber[o.OrderNumber]; ok {
		return ErrDuplicateOrderNumber
	}
	if o.IdempotencyKey != nil {
		if _, ok := s.byKey[*o.IdempotencyKey]; ok {
			return ErrDuplicateIdempotencyKey
		}
	}

	s.nextID++
	o.ID = s.nextID
	o.Version = 1
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		s.nextItem++
		o.Items[i].ID = s.nextItem
		o.Items[i].OrderID = o.ID
		o.Items[i].CreatedAt = o.CreatedAt
	}

	s.orders[o.ID] = o.Clone()
	s.byNumber[o.OrderNumber] = o.ID
	if o.IdempotencyKey != nil {
		s.byKey[*o.IdempotencyKey] = o.ID
	}
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uint64) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	s.mu.RLock()
	id, ok := s.byNumber[number]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrOrderNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *MemoryStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	s.mu.RLock()
	id, ok := s.byKey[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrOrderNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Order, 0)
	for _, o := range s.orders {
		if matches(o, f) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*models.Order{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, f Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, o := range s.orders {
		if matches(o, f) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Update(ctx context.Context, o *models.Order, expectedVersion int64, history ...models.OrderStatusHistory) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[o.ID]
	if !ok {
		return 0, ErrOrderNotFound
	}
	if current.Version != expectedVersion {
		return 0, ErrConcurrentModification
	}

	next := current.Clone()
	next.Status = o.Status
	next.PaymentStatus = o.PaymentStatus
	next.PaymentReference = o.PaymentReference
	next.Notes = o.Notes
	next.AcceptedAt = o.AcceptedAt
	next.PreparationStartedAt = o.PreparationStartedAt
	next.PreparationCompletedAt = o.PreparationCompletedAt
	next.ActualDeliveryTime = o.ActualDeliveryTime
	next.Version = expectedVersion + 1
	next.UpdatedAt = s.now()
	next = next.Clone()

	for _, h := range history {
		s.nextHist++
		h.ID = s.nextHist
		h.OrderID = o.ID
		if h.CreatedAt.IsZero() {
			h.CreatedAt = next.UpdatedAt
		}
		s.history[o.ID] = append(s.history[o.ID], h)
	}
	s.orders[o.ID] = next
	return next.Version, nil
}

func (s *MemoryStore) History(ctx context.Context, orderID uint64) ([]models.OrderStatusHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.orders[orderID]; !ok {
		return nil, ErrOrderNotFound
	}
	rows := s.history[orderID]
	out := make([]models.OrderStatusHistory, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *MemoryStore) GetDaily(ctx context.Context, date string) (*models.DailyAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.analytics[date]
	if !ok {
		return nil, ErrAnalyticsNotCached
	}
	c := *snap
	return &c, nil
}

func (s *MemoryStore) PutDaily(ctx context.Context, snapshot *models.DailyAnalytics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *snapshot
	s.analytics[snapshot.Date] = &c
	return nil
}

func (s *MemoryStore) InvalidateDaily(ctx context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.analytics, date)
	return nil
}
