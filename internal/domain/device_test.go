package domain

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidDeviceCode(t *testing.T) {
	valid := []string{"1234567", "0000000", "9999999"}
	for _, code := range valid {
		assert.True(t, ValidDeviceCode(code), code)
	}

	invalid := []string{
		"",
		"123456",    // 6 位
		"12345678",  // 8 位
		"123456a",   // 非数字
		" 1234567",  // 前导空格
		"1234567 ",  // 尾随空格
		"１２３４５６７",   // 全角数字
		"123-456",   // 分隔符
	}
	for _, code := range invalid {
		assert.False(t, ValidDeviceCode(code), code)
	}
}

func TestDeviceIsBound(t *testing.T) {
	d := &Device{}
	assert.False(t, d.IsBound())

	d.WearerID = sql.NullString{String: "w-1", Valid: true}
	assert.True(t, d.IsBound())

	d.WearerID = sql.NullString{String: "", Valid: true}
	assert.False(t, d.IsBound())
}
