package model

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NativeDecimals 原生币 (microAlgo) 精度
const NativeDecimals int32 = 6

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount 把用户输入的十进制金额转为最小单位
// text: "1.25"; decimals: 资产精度 (原生币为 6)
// 超出精度的小数位直接拒绝，而不是悄悄截断
func ParseAmount(text string, decimals int32) (uint64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative", ErrInvalidAmount)
	}

	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, decimals)
	}
	if scaled.GreaterThan(fromUint64(math.MaxUint64)) {
		return 0, fmt.Errorf("%w: overflow", ErrInvalidAmount)
	}
	return scaled.BigInt().Uint64(), nil
}

// FormatAmount 把最小单位金额格式化为十进制字符串
func FormatAmount(units uint64, decimals int32) string {
	return fromUint64(units).Shift(-decimals).StringFixed(decimals)
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
