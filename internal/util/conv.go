package util

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// ParseMarks 分值字符串转 decimal，分值运算不走浮点
func ParseMarks(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
