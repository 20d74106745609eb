package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/storefront/internal/order/application"
	"github.com/wyfcoding/storefront/internal/order/domain"
	"github.com/wyfcoding/storefront/internal/payment/infrastructure/stripe"
	"github.com/wyfcoding/storefront/internal/pricing"
	"github.com/wyfcoding/storefront/pkg/auth"
	"github.com/wyfcoding/storefront/pkg/errorx"
	"github.com/wyfcoding/storefront/pkg/response"
)

// maxWebhookBody webhook 请求体上限
const maxWebhookBody = 1 << 20

// OrderHandler 结账、支付确认与订单查询
type OrderHandler struct {
	checkout     *application.CheckoutService
	confirmation *application.ConfirmationService
	query        *application.OrderQueryService
}

// NewOrderHandler 创建处理器
func NewOrderHandler(checkout *application.CheckoutService, confirmation *application.ConfirmationService, query *application.OrderQueryService) *OrderHandler {
	return &OrderHandler{checkout: checkout, confirmation: confirmation, query: query}
}

// RegisterRoutes 注册需登录的路由，checkoutLimit 可为空
func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup, checkoutLimit gin.HandlerFunc) {
	router.POST("/checkout/sessions", chain(checkoutLimit, h.CreateCheckoutSession)...)
	router.POST("/payments/confirm", h.ConfirmPayment)
	router.GET("/orders", h.ListOrders)
	router.GET("/orders/by-session/:sessionId", h.GetBySession)
}

// RegisterWebhook 注册支付服务商回调，不经过登录鉴权
func (h *OrderHandler) RegisterWebhook(router *gin.RouterGroup, limit gin.HandlerFunc) {
	router.POST("/payments/webhook", chain(limit, h.Webhook)...)
}

func chain(mw gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if mw == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{mw, h}
}

// CreateCheckoutSessionRequest 发起结账请求；地址为空时使用购物车上的地址
type CreateCheckoutSessionRequest struct {
	ShippingAddressID string `json:"shippingAddressId" binding:"omitempty,max=36"`
}

// ConfirmPaymentRequest 主动确认请求
type ConfirmPaymentRequest struct {
	SessionID string `json:"sessionId" binding:"required,max=255"`
}

// OrderItemResponse 订单商品行
type OrderItemResponse struct {
	ID               string `json:"id"`
	VariantID        string `json:"variantId"`
	Name             string `json:"name"`
	ImageURL         string `json:"imageUrl,omitempty"`
	Quantity         int64  `json:"quantity"`
	PriceInCents     int64  `json:"priceInCents"`
	LineTotalInCents int64  `json:"lineTotalInCents"`
}

// OrderResponse 订单详情
type OrderResponse struct {
	ID                 string              `json:"id"`
	OrderNumber        string              `json:"orderNumber"`
	Status             string              `json:"status"`
	TotalAmountInCents int64               `json:"totalAmountInCents"`
	Total              string              `json:"total"`
	Currency           string              `json:"currency"`
	ShippingAddressID  string              `json:"shippingAddressId"`
	PaymentSessionID   *string             `json:"paymentSessionId"`
	PaidAt             *time.Time          `json:"paidAt,omitempty"`
	CancelledAt        *time.Time          `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	Items              []OrderItemResponse `json:"items"`
}

func toResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{
			ID:               it.ID,
			VariantID:        it.ProductVariantID,
			Name:             it.Name,
			ImageURL:         it.ImageURL,
			Quantity:         it.Quantity,
			PriceInCents:     it.PriceInCents,
			LineTotalInCents: it.PriceInCents * it.Quantity,
		})
	}
	return OrderResponse{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		Status:             string(o.Status),
		TotalAmountInCents: o.TotalAmountInCents,
		Total:              pricing.Format(o.TotalAmountInCents, o.Currency),
		Currency:           o.Currency,
		ShippingAddressID:  o.ShippingAddressID,
		PaymentSessionID:   o.PaymentSessionID,
		PaidAt:             o.PaidAt,
		CancelledAt:        o.CancelledAt,
		CreatedAt:          o.CreatedAt,
		Items:              items,
	}
}

func session(c *gin.Context) (auth.Session, bool) {
	s, ok := auth.FromContext(c.Request.Context())
	if !ok {
		response.Error(c, errorx.Unauthenticated("sign in to continue"))
	}
	return s, ok
}

// CreateCheckoutSession 发起结账，返回支付跳转地址
func (h *OrderHandler) CreateCheckoutSession(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req CreateCheckoutSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BindError(c, err)
			return
		}
	}
	res, err := h.checkout.Initiate(c.Request.Context(), application.InitiateCommand{
		UserID:            s.UserID,
		Email:             s.Email,
		ShippingAddressID: req.ShippingAddressID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Webhook 支付服务商推送；除签名错误外一律确认接收
func (h *OrderHandler) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid_request", "unreadable request body")
		return
	}
	if err := h.confirmation.HandleWebhook(c.Request.Context(), payload, c.GetHeader(stripe.SignatureHeader)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"received": true})
}

// ConfirmPayment 客户端主动确认
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	order, err := h.confirmation.ConfirmSession(c.Request.Context(), s.UserID, req.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if order == nil {
		c.JSON(http.StatusAccepted, gin.H{"status": "processing"})
		return
	}
	response.Success(c, toResponse(order))
}

// GetBySession 按支付会话查询订单
func (h *OrderHandler) GetBySession(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	order, err := h.query.GetBySession(c.Request.Context(), s.UserID, c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toResponse(order))
}

// ListOrders 订单列表
func (h *OrderHandler) ListOrders(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	orders, p, err := h.query.ListByUser(c.Request.Context(), s.UserID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResponse(o))
	}
	response.Success(c, gin.H{"orders": out, "pagination": p})
}
