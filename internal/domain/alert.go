package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertSeverity 告警级别
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// RiskAlert 强平风险告警。派生数据，核心不持久化，只发给通知 sink。
type RiskAlert struct {
	ID         string          // 告警 ID
	PositionID string          // 关联仓位 ID
	Owner      string          // 持有人地址
	Market     string          // 市场
	Side       PositionSide    // 仓位方向
	Distance   decimal.Decimal // 强平距离（分数，越小越危险）
	Severity   AlertSeverity   // 级别
	Timestamp  time.Time       // 产生时间
}

// SeverityForDistance 按强平距离划定告警级别。
// < 0.05 critical，< 0.10 warning，其余（< 0.15 的告警区间内）info。
func SeverityForDistance(distance decimal.Decimal) AlertSeverity {
	switch {
	case distance.LessThan(decimal.NewFromFloat(0.05)):
		return AlertSeverityCritical
	case distance.LessThan(decimal.NewFromFloat(0.10)):
		return AlertSeverityWarning
	default:
		return AlertSeverityInfo
	}
}
