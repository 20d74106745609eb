package persistence

import (
	"context"
	"fmt"

	"github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/pkg/db"
	"github.com/wyfcoding/storefront/pkg/errorx"
)

type variantRepository struct{ db *db.DB }

// NewVariantRepository 创建规格仓储
func NewVariantRepository(d *db.DB) domain.VariantRepository {
	return &variantRepository{db: d}
}

func (r *variantRepository) GetVariant(ctx context.Context, id string) (*domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := r.db.Conn(ctx).Preload("Product").First(&v, "id = ?", id).Error
	if db.IsNotFound(err) {
		return nil, errorx.NotFound("variant_not_found", "product variant not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get variant %s: %w", id, err)
	}
	return &v, nil
}

func (r *variantRepository) GetVariants(ctx context.Context, ids []string) (map[string]*domain.ProductVariant, error) {
	out := make(map[string]*domain.ProductVariant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var variants []*domain.ProductVariant
	if err := r.db.Conn(ctx).Preload("Product").Where("id IN ?", ids).Find(&variants).Error; err != nil {
		return nil, fmt.Errorf("get variants: %w", err)
	}
	for _, v := range variants {
		out[v.ID] = v
	}
	return out, nil
}
