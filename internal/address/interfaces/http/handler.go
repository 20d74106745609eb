package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/storefront/internal/address/application"
	"github.com/wyfcoding/storefront/internal/address/domain"
	"github.com/wyfcoding/storefront/pkg/auth"
	"github.com/wyfcoding/storefront/pkg/errorx"
	"github.com/wyfcoding/storefront/pkg/response"
)

// AddressHandler 收货地址 HTTP 处理器
type AddressHandler struct {
	svc *application.AddressService
}

// NewAddressHandler 创建处理器
func NewAddressHandler(svc *application.AddressService) *AddressHandler {
	return &AddressHandler{svc: svc}
}

// RegisterRoutes 注册路由，router 需已挂载鉴权中间件
func (h *AddressHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/addresses")
	{
		api.POST("", h.Create)
		api.GET("", h.List)
		api.GET("/:id", h.Get)
		api.DELETE("/:id", h.Delete)
	}
}

// CreateAddressRequest 新建地址请求
type CreateAddressRequest struct {
	RecipientName string `json:"recipientName" binding:"required,max=255"`
	Street        string `json:"street" binding:"required,max=255"`
	Number        string `json:"number" binding:"required,max=32"`
	Complement    string `json:"complement" binding:"max=255"`
	Neighborhood  string `json:"neighborhood" binding:"required,max=255"`
	City          string `json:"city" binding:"required,max=255"`
	State         string `json:"state" binding:"required,max=64"`
	ZipCode       string `json:"zipCode" binding:"required,max=32"`
	Country       string `json:"country" binding:"max=64"`
	Phone         string `json:"phone" binding:"required,max=32"`
	Email         string `json:"email" binding:"required,email"`
	CpfOrCnpj     string `json:"cpfOrCnpj" binding:"required,min=11,max=18"`
}

// AddressResponse 地址响应
type AddressResponse struct {
	ID            string    `json:"id"`
	RecipientName string    `json:"recipientName"`
	Street        string    `json:"street"`
	Number        string    `json:"number"`
	Complement    string    `json:"complement,omitempty"`
	Neighborhood  string    `json:"neighborhood"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	ZipCode       string    `json:"zipCode"`
	Country       string    `json:"country"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	CpfOrCnpj     string    `json:"cpfOrCnpj"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toResponse(a *domain.ShippingAddress) AddressResponse {
	return AddressResponse{
		ID:            a.ID,
		RecipientName: a.RecipientName,
		Street:        a.Street,
		Number:        a.Number,
		Complement:    a.Complement,
		Neighborhood:  a.Neighborhood,
		City:          a.City,
		State:         a.State,
		ZipCode:       a.ZipCode,
		Country:       a.Country,
		Phone:         a.Phone,
		Email:         a.Email,
		CpfOrCnpj:     a.TaxID,
		CreatedAt:     a.CreatedAt,
	}
}

func session(c *gin.Context) (auth.Session, bool) {
	s, ok := auth.FromContext(c.Request.Context())
	if !ok {
		response.Error(c, errorx.Unauthenticated("sign in to continue"))
	}
	return s, ok
}

// Create 新建地址
func (h *AddressHandler) Create(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req CreateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	a, err := h.svc.Create(c.Request.Context(), application.CreateAddressCommand{
		UserID:        s.UserID,
		RecipientName: req.RecipientName,
		Street:        req.Street,
		Number:        req.Number,
		Complement:    req.Complement,
		Neighborhood:  req.Neighborhood,
		City:          req.City,
		State:         req.State,
		ZipCode:       req.ZipCode,
		Country:       req.Country,
		Phone:         req.Phone,
		Email:         req.Email,
		TaxID:         req.CpfOrCnpj,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toResponse(a))
}

// List 地址列表
func (h *AddressHandler) List(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), s.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]AddressResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toResponse(a))
	}
	response.Success(c, gin.H{"addresses": out})
}

// Get 地址详情
func (h *AddressHandler) Get(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	a, err := h.svc.GetOwned(c.Request.Context(), s.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toResponse(a))
}

// Delete 删除地址
func (h *AddressHandler) Delete(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), s.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
