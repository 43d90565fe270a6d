package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionSide 仓位方向
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// PositionStatus 仓位状态
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"   // 开放中
	PositionStatusClosed PositionStatus = "closed" // 已关闭
)

// Position 杠杆仓位领域模型。
// 仓位数据由外部 indexer 拥有，核心只持有只读快照，每次轮询整体替换（不做字段级合并）。
type Position struct {
	ID               string          // 仓位 ID（indexer 侧）
	OwnerAddress     string          // 持有人钱包地址
	Market           string          // 市场标识，例如 "ETH-USD"
	Side             PositionSide    // 方向
	Size             decimal.Decimal // 仓位大小
	EntryPrice       decimal.Decimal // 入场价格
	LiquidationPrice decimal.Decimal // 强平价格
	OpenedAt         time.Time       // 开仓时间
	Status           PositionStatus  // 仓位状态
}

// IsOpen 检查仓位是否开放
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}

// HasRiskPrices 检查是否具备计算强平距离所需的两个价格。
// 缺任意一个的仓位在风险评估时跳过，不报错。
func (p *Position) HasRiskPrices() bool {
	return p.EntryPrice.IsPositive() && p.LiquidationPrice.IsPositive()
}

// LiquidationDistance 计算强平距离（相对入场价的分数）。
// long:  (entry - liq) / entry
// short: (liq - entry) / entry
// 值越小风险越高；负值表示按当前口径已越过强平价。
func (p *Position) LiquidationDistance() decimal.Decimal {
	if !p.HasRiskPrices() {
		return decimal.Zero
	}
	if p.Side == PositionSideLong {
		return p.EntryPrice.Sub(p.LiquidationPrice).Div(p.EntryPrice)
	}
	return p.LiquidationPrice.Sub(p.EntryPrice).Div(p.EntryPrice)
}
