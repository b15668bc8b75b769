package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
	"github.com/axellelanca/portfolio-payments/internal/models"
)

// ProductRepository est une interface qui définit les méthodes d'accès aux produits.
type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	UpdateColumns(ctx context.Context, p *models.Product, columns ...string) error
	ListWithAffiliateURL(ctx context.Context) ([]models.Product, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// GormProductRepository est l'implémentation de ProductRepository utilisant GORM.
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository crée et retourne une nouvelle instance de GormProductRepository.
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(ctx context.Context, p *models.Product) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetByID returns customerrors.ErrNotFound when the product does not exist.
func (r *GormProductRepository) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d: %w", id, customerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &p, nil
}

// UpdateColumns writes only the named columns. affiliate_clicks is never
// written from here so a stale in-memory copy cannot overwrite the counter.
func (r *GormProductRepository) UpdateColumns(ctx context.Context, p *models.Product, columns ...string) error {
	for _, c := range columns {
		if c == "affiliate_clicks" {
			return fmt.Errorf("affiliate_clicks can only be incremented")
		}
	}
	if len(columns) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(p).Select(columns).Updates(p).Error; err != nil {
		return fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}
	return nil
}

// ListWithAffiliateURL récupère tous les produits ayant une URL d'affiliation.
func (r *GormProductRepository) ListWithAffiliateURL(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("affiliate_url IS NOT NULL AND affiliate_url <> ''").
		Order("id").
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list affiliate products: %w", err)
	}
	return products, nil
}

func (r *GormProductRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check slug %q: %w", slug, err)
	}
	return count > 0, nil
}
