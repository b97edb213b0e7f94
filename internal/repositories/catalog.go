package repositories

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/assessment-recommender/internal/models"
)

type CatalogRepository interface {
	Upsert(items []models.CatalogItem, batchSize int) (int, error)
	FindAll() ([]models.CatalogItem, error)
	FindByURL(url string) (*models.CatalogItem, error)
	Count() (int64, error)
}

type catalogRepository struct {
	db *gorm.DB
}

// Upsert implements CatalogRepository. Rows are keyed by id, so repeated syncs overwrite.
func (r *catalogRepository) Upsert(items []models.CatalogItem, batchSize int) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(&items, batchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to upsert catalog items: %w", result.Error)
	}

	return int(result.RowsAffected), nil
}

// FindAll implements CatalogRepository.
func (r *catalogRepository) FindAll() ([]models.CatalogItem, error) {
	var items []models.CatalogItem
	if err := r.db.Order("name ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to find catalog items: %w", err)
	}

	return items, nil
}

// FindByURL implements CatalogRepository.
func (r *catalogRepository) FindByURL(url string) (*models.CatalogItem, error) {
	var item models.CatalogItem
	if err := r.db.Where("id = ?", models.ItemIDFromURL(url)).First(&item).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("catalog item not found: %w", err)
		}

		return nil, fmt.Errorf("failed to find catalog item: %w", err)
	}

	return &item, nil
}

// Count implements CatalogRepository.
func (r *catalogRepository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&models.CatalogItem{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count catalog items: %w", err)
	}

	return count, nil
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}
