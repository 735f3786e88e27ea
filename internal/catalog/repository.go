package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/fitbarz/kitcontrol/internal/domain"
	"github.com/fitbarz/kitcontrol/pkg/common"
)

var (
	// ErrResurrect is returned when a save attempts to flip an INACTIVE
	// record back to ACTIVE. The transition is one-way.
	ErrResurrect = errors.New("inactive records cannot be reactivated")

	// ErrNotFound is returned when a product does not exist.
	ErrNotFound = errors.New("product not found")
)

// Repository handles database operations for the machine catalog.
type Repository interface {
	// List retrieves products with pagination, optionally filtered by a
	// case-insensitive name/code query. Inactive products are included
	// only when withInactive is set.
	List(ctx context.Context, query string, withInactive bool, page, pageSize int) ([]domain.Product, int64, error)

	// ListActive retrieves all active products with their active
	// components preloaded, for dispatch product selection.
	ListActive(ctx context.Context) ([]domain.Product, error)

	// GetByID retrieves one product with all components (any status).
	GetByID(ctx context.Context, id int64) (*domain.Product, error)

	// Save upserts a product and its component list by id. New records
	// get generated ids. Components are never physically removed;
	// status transitions to INACTIVE are accepted, resurrection is not.
	Save(ctx context.Context, product *domain.Product) error

	// SoftDelete marks a product INACTIVE. The row is kept.
	SoftDelete(ctx context.Context, id int64) error
}

// SuggestComponentCode returns the conventional child code for the
// next component of a kit: {parentCode}-{index}. It is a convenience
// default only; duplicates are tolerated by the scan matching policy.
func SuggestComponentCode(parentCode string, index int) string {
	parentCode = strings.TrimSpace(parentCode)
	if parentCode == "" {
		parentCode = "NEW"
	}
	return fmt.Sprintf("%s-%d", parentCode, index)
}

// GormRepository is the GORM implementation of Repository.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

var _ Repository = (*GormRepository)(nil)

func (r *GormRepository) List(ctx context.Context, query string, withInactive bool, page, pageSize int) ([]domain.Product, int64, error) {
	base := r.db.WithContext(ctx).Model(&domain.Product{})
	if !withInactive {
		base = base.Where("status = ?", domain.StatusActive)
	}
	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		base = base.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.Product
	err := base.Preload("Components", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort ASC, id ASC")
	}).
		Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *GormRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	var rows []domain.Product
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusActive).
		Preload("Components", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", domain.StatusActive).Order("sort ASC, id ASC")
		}).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *GormRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.db.WithContext(ctx).
		Preload("Components", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepository) Save(ctx context.Context, product *domain.Product) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if product.Status == "" {
			product.Status = domain.StatusActive
		}
		if product.ID == 0 {
			product.ID = common.UUIDint64()
			product.CreatedAt = now
		} else {
			var existing domain.Product
			err := tx.Where("id = ?", product.ID).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				product.CreatedAt = now
			case err != nil:
				return err
			default:
				if existing.Status == domain.StatusInactive && product.Status == domain.StatusActive {
					return ErrResurrect
				}
				product.CreatedAt = existing.CreatedAt
			}
		}
		product.UpdatedAt = now

		for i := range product.Components {
			comp := &product.Components[i]
			comp.ProductID = product.ID
			if comp.Status == "" {
				comp.Status = domain.StatusActive
			}
			if comp.Sort == 0 {
				comp.Sort = i + 1
			}
			if comp.ID == 0 {
				comp.ID = common.UUIDint64()
				comp.CreatedAt = now
			} else {
				var existing domain.Component
				err := tx.Where("id = ?", comp.ID).First(&existing).Error
				switch {
				case errors.Is(err, gorm.ErrRecordNotFound):
					comp.CreatedAt = now
				case err != nil:
					return err
				default:
					if existing.Status == domain.StatusInactive && comp.Status == domain.StatusActive {
						return ErrResurrect
					}
					comp.CreatedAt = existing.CreatedAt
				}
			}
			comp.UpdatedAt = now
		}

		if err := tx.Omit("Components").Save(product).Error; err != nil {
			return err
		}
		for i := range product.Components {
			if err := tx.Save(&product.Components[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormRepository) SoftDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     domain.StatusInactive,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
