package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/pkg/errorx"
)

func TestStatusOf(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          errorx.Validation("cart_empty", "cart is empty"),
		http.StatusUnauthorized:        errorx.Unauthenticated("no session"),
		http.StatusForbidden:           errorx.Forbidden("not_owner", "not yours"),
		http.StatusNotFound:            errorx.NotFound("order_not_found", "order not found"),
		http.StatusConflict:            errorx.Conflict("checkout_in_progress", "busy"),
		http.StatusInternalServerError: errorx.New(errorx.KindExternalConfiguration, "payment_misconfigured", "payment configuration error"),
		http.StatusBadGateway:          errorx.New(errorx.KindExternalRejected, "payment_rejected", "rejected"),
		http.StatusServiceUnavailable:  errorx.New(errorx.KindExternalTransient, "payment_unavailable", "unavailable"),
	}
	for want, err := range cases {
		assert.Equal(t, want, StatusOf(err), err.Error())
	}
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("db down")))
}

func TestError_HidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Error(c, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal", body.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestError_BusinessError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Error(c, errorx.Validation("cart_empty", "your cart is empty"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":"cart_empty","message":"your cart is empty"}`, w.Body.String())
}
