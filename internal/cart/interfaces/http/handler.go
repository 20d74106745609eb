package http

import (
	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/storefront/internal/cart/application"
	"github.com/wyfcoding/storefront/pkg/auth"
	"github.com/wyfcoding/storefront/pkg/errorx"
	"github.com/wyfcoding/storefront/pkg/response"
)

// CartHandler 购物车 HTTP 处理器
type CartHandler struct {
	svc *application.CartService
}

// NewCartHandler 创建处理器
func NewCartHandler(svc *application.CartService) *CartHandler {
	return &CartHandler{svc: svc}
}

// RegisterRoutes 注册路由，router 需已挂载鉴权中间件
func (h *CartHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/cart")
	{
		api.GET("", h.Get)
		api.DELETE("", h.Clear)
		api.PUT("/shipping-address", h.SetShippingAddress)
		api.POST("/items", h.AddItem)
		api.PATCH("/items/:id", h.UpdateQuantity)
		api.POST("/items/:id/decrement", h.Decrement)
		api.DELETE("/items/:id", h.RemoveItem)
	}
}

// AddItemRequest 添加商品请求
type AddItemRequest struct {
	VariantID string `json:"variantId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1,max=999"`
}

// UpdateQuantityRequest 修改数量请求
type UpdateQuantityRequest struct {
	Quantity int64 `json:"quantity" binding:"required,min=1,max=999"`
}

// SetShippingAddressRequest 指定收货地址请求
type SetShippingAddressRequest struct {
	ShippingAddressID string `json:"shippingAddressId" binding:"required"`
}

func session(c *gin.Context) (auth.Session, bool) {
	s, ok := auth.FromContext(c.Request.Context())
	if !ok {
		response.Error(c, errorx.Unauthenticated("sign in to continue"))
	}
	return s, ok
}

// Get 当前用户购物车
func (h *CartHandler) Get(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	view, err := h.svc.GetOrCreate(c.Request.Context(), s.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// AddItem 添加商品
func (h *CartHandler) AddItem(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	view, err := h.svc.AddItem(c.Request.Context(), application.AddItemCommand{
		UserID:    s.UserID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// UpdateQuantity 修改数量
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	view, err := h.svc.UpdateQuantity(c.Request.Context(), application.UpdateQuantityCommand{
		UserID:   s.UserID,
		ItemID:   c.Param("id"),
		Quantity: req.Quantity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// Decrement 数量减 1
func (h *CartHandler) Decrement(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	view, err := h.svc.DecrementOne(c.Request.Context(), s.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// RemoveItem 删除商品行
func (h *CartHandler) RemoveItem(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	view, err := h.svc.RemoveItem(c.Request.Context(), s.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// Clear 清空购物车
func (h *CartHandler) Clear(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	if err := h.svc.Clear(c.Request.Context(), s.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetShippingAddress 指定收货地址
func (h *CartHandler) SetShippingAddress(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req SetShippingAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	view, err := h.svc.SetShippingAddress(c.Request.Context(), s.UserID, req.ShippingAddressID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}
