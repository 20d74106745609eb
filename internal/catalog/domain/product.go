package domain

import (
	"context"
	"time"
)

// Product 商品
type Product struct {
	ID          string `gorm:"size:36;primaryKey"`
	Name        string `gorm:"size:255;not null"`
	Slug        string `gorm:"size:255;uniqueIndex"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Product) TableName() string { return "products" }

// ProductVariant 商品规格，价格以分为单位
type ProductVariant struct {
	ID           string   `gorm:"size:36;primaryKey"`
	ProductID    string   `gorm:"size:36;index;not null"`
	Product      *Product `gorm:"foreignKey:ProductID"`
	Name         string   `gorm:"size:255;not null"`
	Color        string   `gorm:"size:64"`
	ImageURL     string   `gorm:"size:1024"`
	PriceInCents int64    `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ProductVariant) TableName() string { return "product_variants" }

// DisplayName 商品名与规格名组合
func (v *ProductVariant) DisplayName() string {
	if v.Product == nil || v.Product.Name == "" {
		return v.Name
	}
	if v.Name == "" {
		return v.Product.Name
	}
	return v.Product.Name + " - " + v.Name
}

// VariantRepository 规格只读查询
type VariantRepository interface {
	GetVariant(ctx context.Context, id string) (*ProductVariant, error)
	// GetVariants 按 ID 批量查询，不存在的 ID 不出现在结果中
	GetVariants(ctx context.Context, ids []string) (map[string]*ProductVariant, error)
}
