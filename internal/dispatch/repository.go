package dispatch

import (
	"context"

	"gorm.io/gorm"

	"github.com/fitbarz/kitcontrol/internal/domain"
)

// GormLogRepository is the GORM implementation of the append-only
// dispatch log. Records are never updated or deleted; listings return
// the newest record first.
type GormLogRepository struct {
	db *gorm.DB
}

func NewGormLogRepository(db *gorm.DB) *GormLogRepository {
	return &GormLogRepository{db: db}
}

var _ LogRepository = (*GormLogRepository)(nil)

func (r *GormLogRepository) Append(ctx context.Context, record *domain.DispatchRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// List retrieves dispatch records newest first. Snowflake ids are
// time-ordered, so id DESC matches creation order.
func (r *GormLogRepository) List(ctx context.Context, page, pageSize int) ([]domain.DispatchRecord, int64, error) {
	base := r.db.WithContext(ctx).Model(&domain.DispatchRecord{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.DispatchRecord
	err := base.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// All retrieves the complete log newest first, for backup and export.
func (r *GormLogRepository) All(ctx context.Context) ([]domain.DispatchRecord, error) {
	var rows []domain.DispatchRecord
	err := r.db.WithContext(ctx).Order("id DESC").Find(&rows).Error
	return rows, err
}
