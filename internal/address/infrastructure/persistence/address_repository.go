package persistence

import (
	"context"
	"fmt"

	"github.com/wyfcoding/storefront/internal/address/domain"
	"github.com/wyfcoding/storefront/pkg/db"
)

type addressRepository struct{ db *db.DB }

// NewAddressRepository 创建地址仓储
func NewAddressRepository(d *db.DB) domain.AddressRepository {
	return &addressRepository{db: d}
}

func (r *addressRepository) Create(ctx context.Context, a *domain.ShippingAddress) error {
	if err := r.db.Conn(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create address: %w", err)
	}
	return nil
}

// GetByID 不存在时返回 nil, nil
func (r *addressRepository) GetByID(ctx context.Context, id string) (*domain.ShippingAddress, error) {
	var a domain.ShippingAddress
	err := r.db.Conn(ctx).First(&a, "id = ?", id).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get address %s: %w", id, err)
	}
	return &a, nil
}

func (r *addressRepository) ListByUser(ctx context.Context, userID string) ([]*domain.ShippingAddress, error) {
	var out []*domain.ShippingAddress
	if err := r.db.Conn(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return out, nil
}

func (r *addressRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.Conn(ctx).Delete(&domain.ShippingAddress{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete address %s: %w", id, err)
	}
	return nil
}
