package model

import (
	"time"
)

type Product struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	//在庫数。台帳（StockTransaction）経由でしか変わらない
	Stock int64 `gorm:"not null;check:chk_products_stock,stock >= 0" json:"stock"`

	//0なら設定値（ALERT_DEFAULT_THRESHOLD）を使う
	LowStockThreshold int64 `gorm:"not null;default:0" json:"lowStockThreshold"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

// 閾値（商品ごとの設定が無ければdefault）
func (p Product) EffectiveThreshold(def int64) int64 {
	if p.LowStockThreshold > 0 {
		return p.LowStockThreshold
	}
	return def
}
