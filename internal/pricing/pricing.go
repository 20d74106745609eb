// Package pricing 以整数分计算订单金额，不使用浮点数
package pricing

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/storefront/pkg/errorx"
)

// Line 一行商品：单价（分）与数量
type Line struct {
	UnitPriceInCents int64
	Quantity         int64
}

var (
	ErrNegativePrice    = errorx.Validation("negative_price", "price cannot be negative")
	ErrNegativeQuantity = errorx.Validation("negative_quantity", "quantity cannot be negative")
	ErrOverflow         = errorx.Validation("amount_overflow", "amount exceeds the supported range")
)

// LineTotal 单行金额
func LineTotal(l Line) (int64, error) {
	if l.UnitPriceInCents < 0 {
		return 0, ErrNegativePrice
	}
	if l.Quantity < 0 {
		return 0, ErrNegativeQuantity
	}
	if l.Quantity != 0 && l.UnitPriceInCents > math.MaxInt64/l.Quantity {
		return 0, ErrOverflow
	}
	return l.UnitPriceInCents * l.Quantity, nil
}

// Total 各行金额之和，与输入顺序无关
func Total(lines []Line) (int64, error) {
	var total int64
	for _, l := range lines {
		amount, err := LineTotal(l)
		if err != nil {
			return 0, err
		}
		if total > math.MaxInt64-amount {
			return 0, ErrOverflow
		}
		total += amount
	}
	return total, nil
}

// Format 将分格式化为带币种的展示金额，例如 "BRL 150.00"
func Format(cents int64, currency string) string {
	amount := decimal.New(cents, -2).StringFixed(2)
	if currency == "" {
		return amount
	}
	return strings.ToUpper(currency) + " " + amount
}
