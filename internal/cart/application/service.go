package application

import (
	"context"
	"time"

	address "github.com/wyfcoding/storefront/internal/address/domain"
	"github.com/wyfcoding/storefront/internal/cart/domain"
	catalog "github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/pkg/errorx"
	"github.com/wyfcoding/storefront/pkg/logger"
)

// MaxItemQuantity 单行商品数量上限
const MaxItemQuantity = 999

// Transactor 在事务中执行
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher 事件发布（发件箱）
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, event any) error
}

// AddressOwner 校验地址归属
type AddressOwner interface {
	GetOwned(ctx context.Context, userID, addressID string) (*address.ShippingAddress, error)
}

// AddItemCommand 添加商品
type AddItemCommand struct {
	UserID    string
	VariantID string
	Quantity  int64
}

// UpdateQuantityCommand 修改数量
type UpdateQuantityCommand struct {
	UserID   string
	ItemID   string
	Quantity int64
}

// CartService 购物车服务
type CartService struct {
	tx        Transactor
	repo      domain.CartRepository
	variants  catalog.VariantRepository
	addresses AddressOwner
	publisher EventPublisher
	currency  string
}

// NewCartService 创建购物车服务
func NewCartService(
	tx Transactor,
	repo domain.CartRepository,
	variants catalog.VariantRepository,
	addresses AddressOwner,
	publisher EventPublisher,
	currency string,
) *CartService {
	return &CartService{
		tx:        tx,
		repo:      repo,
		variants:  variants,
		addresses: addresses,
		publisher: publisher,
		currency:  currency,
	}
}

// GetOrCreate 返回用户购物车，不存在时创建空购物车；并发调用只会产生一个购物车
func (s *CartService) GetOrCreate(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.repo.EnsureForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

// AddItem 添加商品；同一规格已存在时累加数量
func (s *CartService) AddItem(ctx context.Context, cmd AddItemCommand) (*CartView, error) {
	if err := validateQuantity(cmd.Quantity); err != nil {
		return nil, err
	}
	if _, err := s.variants.GetVariant(ctx, cmd.VariantID); err != nil {
		return nil, err
	}

	var cart *domain.Cart
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.EnsureForUser(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		for _, it := range c.Items {
			if it.ProductVariantID == cmd.VariantID && it.Quantity+cmd.Quantity > MaxItemQuantity {
				return errorx.Validation("quantity_limit_exceeded", "quantity exceeds the maximum per item")
			}
		}
		if err := s.repo.IncrementItem(ctx, c.ID, cmd.VariantID, cmd.Quantity, MaxItemQuantity); err != nil {
			return err
		}
		if err := s.publisher.Publish(ctx, domain.EventItemAdded, c.ID, domain.CartItemAddedEvent{
			CartID:           c.ID,
			UserID:           cmd.UserID,
			ProductVariantID: cmd.VariantID,
			Quantity:         cmd.Quantity,
			Timestamp:        time.Now().UTC(),
		}); err != nil {
			return err
		}
		cart, err = s.repo.GetByID(ctx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Cart item added", "cart_id", cart.ID, "variant_id", cmd.VariantID, "quantity", cmd.Quantity)
	return s.view(ctx, cart)
}

// UpdateQuantity 将商品行数量设为指定值
func (s *CartService) UpdateQuantity(ctx context.Context, cmd UpdateQuantityCommand) (*CartView, error) {
	if err := validateQuantity(cmd.Quantity); err != nil {
		return nil, err
	}
	item, err := s.ownedItem(ctx, cmd.UserID, cmd.ItemID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetItemQuantity(ctx, item.ID, cmd.Quantity); err != nil {
		return nil, err
	}
	return s.reload(ctx, item.CartID)
}

// DecrementOne 数量减 1，数量为 1 时删除该行
func (s *CartService) DecrementOne(ctx context.Context, userID, itemID string) (*CartView, error) {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	removed, err := s.repo.DecrementItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if removed {
		logger.Info(ctx, "Cart item removed by decrement", "cart_id", item.CartID, "item_id", item.ID)
	}
	return s.reload(ctx, item.CartID)
}

// RemoveItem 删除商品行
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) (*CartView, error) {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.DeleteItem(ctx, item.ID)
		if err != nil || n == 0 {
			return err
		}
		return s.publisher.Publish(ctx, domain.EventItemRemoved, item.CartID, domain.CartItemRemovedEvent{
			CartID:    item.CartID,
			UserID:    userID,
			ItemID:    item.ID,
			Timestamp: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, item.CartID)
}

// Clear 清空商品并重置收货地址；购物车本身保留
func (s *CartService) Clear(ctx context.Context, userID string) error {
	cart, err := s.repo.GetByUser(ctx, userID)
	if err != nil || cart == nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.DeleteItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		if err := s.repo.SetShippingAddress(ctx, cart.ID, nil); err != nil {
			return err
		}
		return s.publishCleared(ctx, cart, n, "user")
	})
}

// ClearAfterPayment 支付成功后无条件删除购物车全部商品
func (s *CartService) ClearAfterPayment(ctx context.Context, cartID string) error {
	cart, err := s.repo.GetByID(ctx, cartID)
	if err != nil {
		return err
	}
	if cart == nil {
		return errorx.NotFound("cart_not_found", "cart not found")
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.DeleteItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		return s.publishCleared(ctx, cart, n, "payment")
	})
}

// SetShippingAddress 为购物车指定收货地址
func (s *CartService) SetShippingAddress(ctx context.Context, userID, addressID string) (*CartView, error) {
	if _, err := s.addresses.GetOwned(ctx, userID, addressID); err != nil {
		return nil, err
	}
	cart, err := s.repo.EnsureForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetShippingAddress(ctx, cart.ID, &addressID); err != nil {
		return nil, err
	}
	return s.reload(ctx, cart.ID)
}

// View 读取当前用户购物车，不存在时返回 nil；在事务 ctx 中调用时读到的价格即为该事务内的价格快照
func (s *CartService) View(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.repo.GetByUser(ctx, userID)
	if err != nil || cart == nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *CartService) publishCleared(ctx context.Context, cart *domain.Cart, removed int64, reason string) error {
	return s.publisher.Publish(ctx, domain.EventCleared, cart.ID, domain.CartClearedEvent{
		CartID:       cart.ID,
		UserID:       cart.UserID,
		ItemsRemoved: removed,
		Reason:       reason,
		Timestamp:    time.Now().UTC(),
	})
}

func (s *CartService) ownedItem(ctx context.Context, userID, itemID string) (*domain.CartItem, error) {
	item, owner, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, errorx.NotFound("cart_item_not_found", "cart item not found")
	}
	if owner != userID {
		return nil, errorx.Forbidden("cart_item_not_owned", "cart item belongs to another user")
	}
	return item, nil
}

func (s *CartService) reload(ctx context.Context, cartID string) (*CartView, error) {
	cart, err := s.repo.GetByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, errorx.NotFound("cart_not_found", "cart not found")
	}
	return s.view(ctx, cart)
}

func (s *CartService) view(ctx context.Context, cart *domain.Cart) (*CartView, error) {
	ids := make([]string, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.ProductVariantID)
	}
	variants, err := s.variants.GetVariants(ctx, ids)
	if err != nil {
		return nil, err
	}
	return buildView(cart, variants, s.currency)
}

func validateQuantity(q int64) error {
	if q < 1 {
		return errorx.Validation("invalid_quantity", "quantity must be at least 1")
	}
	if q > MaxItemQuantity {
		return errorx.Validation("invalid_quantity", "quantity exceeds the maximum per item")
	}
	return nil
}
