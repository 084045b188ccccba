package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/hotslice/internal/models"
)

// GormStore implements OrderStore and AnalyticsCache on top of gorm.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore wraps an opened and migrated connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) Create(ctx context.Context, o *models.Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.CreatedAt
	o.Version = 1
	for i := range o.Items {
		o.Items[i].CreatedAt = o.CreatedAt
	}

	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return classifyUnique(err)
	}
	return nil
}

func (s *GormStore) GetByID(ctx context.Context, id uint64) (*models.Order, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	return s.first(ctx, "order_number = ?", number)
}

func (s *GormStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	return s.first(ctx, "idempotency_key = ?", key)
}

func (s *GormStore) first(ctx context.Context, query string, args ...any) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", orderItemsByID).
		Where(query, args...).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (s *GormStore) List(ctx context.Context, f Filter) ([]*models.Order, error) {
	query := s.filtered(ctx, f).
		Preload("Items", orderItemsByID).
		Order("created_at desc").
		Order("id desc")
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}

	var orders []*models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *GormStore) Count(ctx context.Context, f Filter) (int64, error) {
	var total int64
	if err := s.filtered(ctx, f).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *GormStore) filtered(ctx context.Context, f Filter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if f.Status != nil {
		query = query.Where("status = ?", *f.Status)
	}
	if f.CustomerID != nil {
		query = query.Where("customer_id = ?", *f.CustomerID)
	}
	if f.From != nil {
		query = query.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		query = query.Where("created_at < ?", f.To.UTC())
	}
	return query
}

func (s *GormStore) Update(ctx context.Context, o *models.Order, expectedVersion int64, history ...models.OrderStatusHistory) (int64, error) {
	newVersion := expectedVersion + 1
	now := s.now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND version = ?", o.ID, expectedVersion).
			Updates(map[string]any{
				"status":                   o.Status,
				"payment_status":           o.PaymentStatus,
				"payment_reference":        o.PaymentReference,
				"notes":                    o.Notes,
				"accepted_at":              utcPtr(o.AcceptedAt),
				"preparation_started_at":   utcPtr(o.PreparationStartedAt),
				"preparation_completed_at": utcPtr(o.PreparationCompletedAt),
				"actual_delivery_time":     utcPtr(o.ActualDeliveryTime),
				"version":                  newVersion,
				"updated_at":               now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrOrderNotFound
			}
			return ErrConcurrentModification
		}

		if len(history) == 0 {
			return nil
		}
		rows := make([]models.OrderStatusHistory, len(history))
		for i, h := range history {
			h.ID = 0
			h.OrderID = o.ID
			if h.CreatedAt.IsZero() {
				h.CreatedAt = now
			}
			h.CreatedAt = h.CreatedAt.UTC()
			rows[i] = h
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

func (s *GormStore) History(ctx context.Context, orderID uint64) ([]models.OrderStatusHistory, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrOrderNotFound
	}

	var rows []models.OrderStatusHistory
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc").
		Order("id asc").
		Find(&rows).Error
	return rows, err
}

func (s *GormStore) GetDaily(ctx context.Context, date string) (*models.DailyAnalytics, error) {
	var snap models.DailyAnalytics
	if err := s.db.WithContext(ctx).Where("date = ?", date).First(&snap).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalyticsNotCached
		}
		return nil, err
	}
	return &snap, nil
}

func (s *GormStore) PutDaily(ctx context.Context, snapshot *models.DailyAnalytics) error {
	row := *snapshot
	row.ID = 0
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}

func (s *GormStore) InvalidateDaily(ctx context.Context, date string) error {
	return s.db.WithContext(ctx).Where("date = ?", date).Delete(&models.DailyAnalytics{}).Error
}

func orderItemsByID(db *gorm.DB) *gorm.DB {
	return db.Order("id asc")
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// classifyUnique maps unique-index violations from postgres or sqlite onto
// the store's sentinel errors by the column named in the driver message. A
// translated gorm.ErrDuplicatedKey carries no column and is returned as is.
func classifyUnique(err error) error {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "duplicate key") && !strings.Contains(msg, "unique constraint") {
		return err
	}
	switch {
	case strings.Contains(msg, "idempotency_key"):
		return fmt.Errorf("%w: %v", ErrDuplicateIdempotencyKey, err)
	case strings.Contains(msg, "order_number"):
		return fmt.Errorf("%w: %v", ErrDuplicateOrderNumber, err)
	default:
		return err
	}
}
