package doctors

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/healthoasis/wallet-backend/pkg/db/models"
)

// Repository reads the doctor directory.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
	FindByName(ctx context.Context, name string) ([]models.Doctor, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Doctor, error)
	Upsert(ctx context.Context, doctors []models.Doctor) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByID returns nil, nil when the id is unknown.
func (r *repository) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	var doctor models.Doctor
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&doctor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doctor, nil
}

// FindByName matches case-insensitively on the full name.
func (r *repository) FindByName(ctx context.Context, name string) ([]models.Doctor, error) {
	var doctors []models.Doctor
	if err := r.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		Order("id ASC").
		Find(&doctors).Error; err != nil {
		return nil, err
	}
	return doctors, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []string) ([]models.Doctor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var doctors []models.Doctor
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&doctors).Error; err != nil {
		return nil, err
	}
	return doctors, nil
}

// Upsert seeds or renames directory entries.
func (r *repository) Upsert(ctx context.Context, doctors []models.Doctor) error {
	if len(doctors) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(&doctors).Error
}
