package instance

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wadesk/wadesk/internal/domain"
	"github.com/wadesk/wadesk/pkg/common"
)

// Repository is the persistence contract the reconciliation core needs.
// Instance writes are full-field upserts keyed by name; there is no partial
// update API, so callers read-modify-write.
type Repository interface {
	// GetByName retrieves an instance record by its gateway name.
	GetByName(ctx context.Context, name string) (*domain.Instance, error)

	// ExistsActive reports whether an active instance with this name exists.
	ExistsActive(ctx context.Context, name string) (bool, error)

	// ListActive retrieves every active instance, oldest first.
	ListActive(ctx context.Context) ([]*domain.Instance, error)

	// List retrieves instances with pagination, newest first.
	List(ctx context.Context, page, pageSize int) ([]*domain.Instance, int64, error)

	// Upsert writes the full record keyed by name.
	Upsert(ctx context.Context, inst *domain.Instance) error

	// DeleteByName removes the local record.
	DeleteByName(ctx context.Context, name string) error

	// ActiveConfig loads the active gateway configuration.
	ActiveConfig(ctx context.Context) (*domain.GatewayConfig, error)

	// SaveConfig persists the gateway configuration as the single active row.
	SaveConfig(ctx context.Context, cfg *domain.GatewayConfig) error
}

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = gorm.ErrRecordNotFound

// GormRepository is the GORM implementation of Repository.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) GetByName(ctx context.Context, name string) (*domain.Instance, error) {
	var inst domain.Instance
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *GormRepository) ExistsActive(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Instance{}).
		Where("name = ? AND active = ?", name, true).
		Count(&count).Error
	return count > 0, err
}

func (r *GormRepository) ListActive(ctx context.Context) ([]*domain.Instance, error) {
	var insts []*domain.Instance
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&insts).Error
	return insts, err
}

func (r *GormRepository) List(ctx context.Context, page, pageSize int) ([]*domain.Instance, int64, error) {
	var insts []*domain.Instance
	var total int64

	base := r.db.WithContext(ctx).Model(&domain.Instance{})
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := base.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&insts).Error
	return insts, total, err
}

func (r *GormRepository) Upsert(ctx context.Context, inst *domain.Instance) error {
	db := r.db.WithContext(ctx)
	inst.ConnectionState = inst.Status
	inst.UpdatedAt = time.Now()

	var existing domain.Instance
	err := db.Where("name = ?", inst.Name).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if inst.ID == 0 {
			inst.ID = common.UUIDint64()
		}
		if inst.CreatedAt.IsZero() {
			inst.CreatedAt = time.Now()
		}
		return db.Create(inst).Error
	case err != nil:
		return err
	}

	inst.ID = existing.ID
	inst.CreatedAt = existing.CreatedAt
	return db.Save(inst).Error
}

func (r *GormRepository) DeleteByName(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Where("name = ?", name).Delete(&domain.Instance{}).Error
}

func (r *GormRepository) ActiveConfig(ctx context.Context) (*domain.GatewayConfig, error) {
	var cfg domain.GatewayConfig
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id DESC").
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.GatewayConfig{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *GormRepository) SaveConfig(ctx context.Context, cfg *domain.GatewayConfig) error {
	db := r.db.WithContext(ctx)
	cfg.UpdatedAt = time.Now()

	var existing domain.GatewayConfig
	err := db.Order("id DESC").First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		cfg.ID = common.UUIDint64()
		cfg.CreatedAt = time.Now()
		cfg.Active = true
		return db.Create(cfg).Error
	case err != nil:
		return err
	}

	cfg.ID = existing.ID
	cfg.CreatedAt = existing.CreatedAt
	cfg.Active = true
	return db.Save(cfg).Error
}
