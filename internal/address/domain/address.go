package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ShippingAddress 收货地址，删除为软删除以保留订单引用
type ShippingAddress struct {
	ID            string `gorm:"size:36;primaryKey"`
	UserID        string `gorm:"size:64;index;not null"`
	RecipientName string `gorm:"size:255;not null"`
	Street        string `gorm:"size:255;not null"`
	Number        string `gorm:"size:32;not null"`
	Complement    string `gorm:"size:255"`
	Neighborhood  string `gorm:"size:255;not null"`
	City          string `gorm:"size:255;not null"`
	State         string `gorm:"size:64;not null"`
	ZipCode       string `gorm:"size:32;not null"`
	Country       string `gorm:"size:64;not null"`
	Phone         string `gorm:"size:32;not null"`
	Email         string `gorm:"size:255;not null"`
	// CPF 或 CNPJ
	TaxID     string `gorm:"size:32;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (ShippingAddress) TableName() string { return "shipping_addresses" }

// AddressRepository 地址仓储
type AddressRepository interface {
	Create(ctx context.Context, a *ShippingAddress) error
	GetByID(ctx context.Context, id string) (*ShippingAddress, error)
	ListByUser(ctx context.Context, userID string) ([]*ShippingAddress, error)
	Delete(ctx context.Context, id string) error
}
