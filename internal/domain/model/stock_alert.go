package model

type StockAlertLevel string

const (
	StockAlertLow StockAlertLevel = "low"
	StockAlertOut StockAlertLevel = "out"
)

// 在庫が閾値以下の商品
type StockAlert struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Stock     int64           `json:"stock"`
	Threshold int64           `json:"threshold"`
	Level     StockAlertLevel `json:"level"`
}

// 閾値以下ならアラートを返す
func AlertFor(p Product, defaultThreshold int64) (StockAlert, bool) {
	threshold := p.EffectiveThreshold(defaultThreshold)
	if p.Stock > threshold {
		return StockAlert{}, false
	}

	level := StockAlertLow
	if p.Stock == 0 {
		level = StockAlertOut
	}
	return StockAlert{
		ProductID: p.ID,
		Name:      p.Name,
		Stock:     p.Stock,
		Threshold: threshold,
		Level:     level,
	}, true
}
