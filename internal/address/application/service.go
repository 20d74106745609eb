package application

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/wyfcoding/storefront/internal/address/domain"
	"github.com/wyfcoding/storefront/pkg/errorx"
	"github.com/wyfcoding/storefront/pkg/logger"
)

// CreateAddressCommand 新建地址
type CreateAddressCommand struct {
	UserID        string
	RecipientName string
	Street        string
	Number        string
	Complement    string
	Neighborhood  string
	City          string
	State         string
	ZipCode       string
	Country       string
	Phone         string
	Email         string
	TaxID         string
}

// AddressService 收货地址服务
type AddressService struct {
	repo domain.AddressRepository
}

// NewAddressService 创建地址服务
func NewAddressService(repo domain.AddressRepository) *AddressService {
	return &AddressService{repo: repo}
}

// Create 新建地址
func (s *AddressService) Create(ctx context.Context, cmd CreateAddressCommand) (*domain.ShippingAddress, error) {
	country := strings.TrimSpace(cmd.Country)
	if country == "" {
		country = "BR"
	}
	a := &domain.ShippingAddress{
		ID:            uuid.NewString(),
		UserID:        cmd.UserID,
		RecipientName: strings.TrimSpace(cmd.RecipientName),
		Street:        strings.TrimSpace(cmd.Street),
		Number:        strings.TrimSpace(cmd.Number),
		Complement:    strings.TrimSpace(cmd.Complement),
		Neighborhood:  strings.TrimSpace(cmd.Neighborhood),
		City:          strings.TrimSpace(cmd.City),
		State:         strings.TrimSpace(cmd.State),
		ZipCode:       strings.TrimSpace(cmd.ZipCode),
		Country:       country,
		Phone:         strings.TrimSpace(cmd.Phone),
		Email:         strings.TrimSpace(cmd.Email),
		TaxID:         strings.TrimSpace(cmd.TaxID),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	logger.Info(ctx, "Shipping address created", "address_id", a.ID)
	return a, nil
}

// List 当前用户的地址，最新在前
func (s *AddressService) List(ctx context.Context, userID string) ([]*domain.ShippingAddress, error) {
	return s.repo.ListByUser(ctx, userID)
}

// GetOwned 返回属于 userID 的地址；不存在返回 NotFound，属于他人返回 Authorization
func (s *AddressService) GetOwned(ctx context.Context, userID, addressID string) (*domain.ShippingAddress, error) {
	a, err := s.repo.GetByID(ctx, addressID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errorx.NotFound("address_not_found", "shipping address not found")
	}
	if a.UserID != userID {
		return nil, errorx.Forbidden("address_not_owned", "shipping address belongs to another user")
	}
	return a, nil
}

// Delete 删除属于当前用户的地址
func (s *AddressService) Delete(ctx context.Context, userID, addressID string) error {
	if _, err := s.GetOwned(ctx, userID, addressID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, addressID)
}
