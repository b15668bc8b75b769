package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
	"github.com/axellelanca/portfolio-payments/internal/models"
)

// ClickRepository est une interface qui définit les méthodes d'accès aux clics d'affiliation.
type ClickRepository interface {
	RecordClick(ctx context.Context, click *models.AffiliateClick) error
	ListSince(ctx context.Context, productID uint, since time.Time) ([]models.AffiliateClick, error)
	ListForProduct(ctx context.Context, productID uint, since *time.Time) ([]models.AffiliateClick, error)
	CountByProduct(ctx context.Context, productID uint) (int64, error)
}

// GormClickRepository est l'implémentation de l'interface ClickRepository utilisant GORM.
type GormClickRepository struct {
	db *gorm.DB
}

// NewClickRepository crée et retourne une nouvelle instance de GormClickRepository.
func NewClickRepository(db *gorm.DB) *GormClickRepository {
	return &GormClickRepository{db: db}
}

// RecordClick increments the product's counter and inserts the click row in
// one transaction. The counter is bumped with a server-side expression so
// concurrent redirects never lose an update.
func (r *GormClickRepository) RecordClick(ctx context.Context, click *models.AffiliateClick) error {
	if click.CreatedAt.IsZero() {
		click.CreatedAt = time.Now()
	}
	click.CreatedAt = click.CreatedAt.UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("id = ?", click.ProductID).
			UpdateColumn("affiliate_clicks", gorm.Expr("affiliate_clicks + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("failed to increment clicks for product %d: %w", click.ProductID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product %d: %w", click.ProductID, customerrors.ErrNotFound)
		}
		if err := tx.Create(click).Error; err != nil {
			return fmt.Errorf("failed to create click: %w", err)
		}
		return nil
	})
}

// ListSince returns clicks for a product at or after since, oldest first.
func (r *GormClickRepository) ListSince(ctx context.Context, productID uint, since time.Time) ([]models.AffiliateClick, error) {
	var clicks []models.AffiliateClick
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND created_at >= ?", productID, since.UTC()).
		Order("created_at ASC").
		Find(&clicks).Error; err != nil {
		return nil, fmt.Errorf("failed to list clicks for product %d: %w", productID, err)
	}
	return clicks, nil
}

// ListForProduct returns clicks newest first, optionally bounded below by since.
func (r *GormClickRepository) ListForProduct(ctx context.Context, productID uint, since *time.Time) ([]models.AffiliateClick, error) {
	q := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if since != nil {
		q = q.Where("created_at >= ?", since.UTC())
	}
	var clicks []models.AffiliateClick
	if err := q.Order("created_at DESC").Order("id DESC").Find(&clicks).Error; err != nil {
		return nil, fmt.Errorf("failed to list clicks for product %d: %w", productID, err)
	}
	return clicks, nil
}

// CountByProduct compte le nombre total de clics enregistrés pour un produit.
func (r *GormClickRepository) CountByProduct(ctx context.Context, productID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AffiliateClick{}).Where("product_id = ?", productID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count clicks for product %d: %w", productID, err)
	}
	return count, nil
}
