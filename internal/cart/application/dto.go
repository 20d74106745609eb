package application

import (
	"github.com/wyfcoding/storefront/internal/cart/domain"
	catalog "github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/internal/pricing"
)

// CartItemView 购物车商品行，价格为读取时刻的目录价
type CartItemView struct {
	ID               string `json:"id"`
	ProductVariantID string `json:"variantId"`
	ProductID        string `json:"productId,omitempty"`
	Name             string `json:"name"`
	Color            string `json:"color,omitempty"`
	ImageURL         string `json:"imageUrl,omitempty"`
	Quantity         int64  `json:"quantity"`
	UnitPriceInCents int64  `json:"unitPriceInCents"`
	LineTotalInCents int64  `json:"lineTotalInCents"`
	// 目录中已不存在该规格
	Unavailable bool `json:"unavailable,omitempty"`
}

// CartView 带解析后商品信息与服务端计算总额的购物车
type CartView struct {
	ID                string         `json:"id"`
	UserID            string         `json:"userId"`
	ShippingAddressID *string        `json:"shippingAddressId"`
	Items             []CartItemView `json:"items"`
	SubtotalInCents   int64          `json:"subtotalInCents"`
	Subtotal          string         `json:"subtotal"`
	ItemCount         int64          `json:"itemCount"`
}

// HasUnavailableItems 是否含有已下架规格
func (v *CartView) HasUnavailableItems() bool {
	for _, it := range v.Items {
		if it.Unavailable {
			return true
		}
	}
	return false
}

// Lines 可售商品行的计价输入
func (v *CartView) Lines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(v.Items))
	for _, it := range v.Items {
		if it.Unavailable {
			continue
		}
		lines = append(lines, pricing.Line{UnitPriceInCents: it.UnitPriceInCents, Quantity: it.Quantity})
	}
	return lines
}

func buildView(cart *domain.Cart, variants map[string]*catalog.ProductVariant, currency string) (*CartView, error) {
	view := &CartView{
		ID:                cart.ID,
		UserID:            cart.UserID,
		ShippingAddressID: cart.ShippingAddressID,
		Items:             make([]CartItemView, 0, len(cart.Items)),
	}
	for _, item := range cart.Items {
		iv := CartItemView{
			ID:               item.ID,
			ProductVariantID: item.ProductVariantID,
			Quantity:         item.Quantity,
		}
		if v, ok := variants[item.ProductVariantID]; ok {
			lineTotal, err := pricing.LineTotal(pricing.Line{UnitPriceInCents: v.PriceInCents, Quantity: item.Quantity})
			if err != nil {
				return nil, err
			}
			iv.ProductID = v.ProductID
			iv.Name = v.DisplayName()
			iv.Color = v.Color
			iv.ImageURL = v.ImageURL
			iv.UnitPriceInCents = v.PriceInCents
			iv.LineTotalInCents = lineTotal
			view.ItemCount += item.Quantity
		} else {
			iv.Unavailable = true
		}
		view.Items = append(view.Items, iv)
	}

	subtotal, err := pricing.Total(view.Lines())
	if err != nil {
		return nil, err
	}
	view.SubtotalInCents = subtotal
	view.Subtotal = pricing.Format(subtotal, currency)
	return view, nil
}
