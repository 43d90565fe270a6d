package riskmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/swapcore/internal/domain"
	"github.com/betbot/swapcore/internal/metrics"
	"github.com/betbot/swapcore/pkg/sigchan"
)

var rmLog = logrus.WithField("module", "risk_monitor")

const (
	// DefaultInterval 默认轮询间隔
	DefaultInterval = 30 * time.Second
	// DefaultAlertCooldown 同一仓位两次告警之间的最小间隔（防刷屏）
	DefaultAlertCooldown = 5 * time.Minute
)

// AlertThreshold 强平距离告警阈值：distance < 0.15 触发
var AlertThreshold = decimal.NewFromFloat(0.15)

// Indexer 仓位 indexer 协作方边界。每次调用都是新鲜查询，无隐式缓存。
type Indexer interface {
	FetchOpenPositions(ctx context.Context, address string) ([]domain.Position, error)
}

// Sink 通知 sink 边界。fire-and-forget，核心不要求确认。
type Sink interface {
	Emit(alert domain.RiskAlert)
}

// Monitor 仓位强平风险监控器。
//
// 固定节奏轮询一个地址的开放仓位，整体替换快照，评估每个仓位的强平距离，
// 接近强平时向 sink 发告警。
//
// 状态约束（对齐 Start/Stop 语义）：
//   - "是否在监控" 和 "定时器句柄" 是同一把锁下的一份状态，只由 Start/Stop 变更，
//     不靠布尔值单独与句柄赛跑
//   - Start 在已监控时保证 no-op（入口先查标志），绝不出现双重调度的循环
//   - 单次 fetch 失败：记账、保留上一份快照、继续下一个 tick，失败绝不停循环
type Monitor struct {
	indexer  Indexer
	sink     Sink
	cooldown time.Duration

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	address     string
	snapshot    []domain.Position
	lastRefresh time.Time
	lastAlertAt map[string]time.Time
	recent      []domain.RiskAlert

	// nudge 外部刺激（如 ws 推送）触发的即时刷新，排队中的刺激合并为一次
	nudge *sigchan.Chan

	wg sync.WaitGroup
}

// NewMonitor 创建监控器
func NewMonitor(indexer Indexer, sink Sink) *Monitor {
	return &Monitor{
		indexer:     indexer,
		sink:        sink,
		cooldown:    DefaultAlertCooldown,
		lastAlertAt: make(map[string]time.Time),
		nudge:       sigchan.New(1),
	}
}

// SetAlertCooldown 设置同一仓位的告警冷却窗口。<= 0 关闭冷却。
func (m *Monitor) SetAlertCooldown(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldown = d
}

// Start 开始监控 address。已在监控时保证 no-op。
// 先做一次立即刷新，再进入固定间隔循环；一个实例同时只允许一条循环。
func (m *Monitor) Start(ctx context.Context, address string, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		rmLog.Debugf("监控已在运行, 忽略重复 Start: address=%s", address)
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.address = address
	m.mu.Unlock()

	rmLog.Infof("启动仓位风险监控: address=%s interval=%s", address, interval)

	// 立即刷新一次，不等第一个 tick
	m.refresh(loopCtx, address)

	m.wg.Add(1)
	go m.loop(loopCtx, address, interval)
}

// Stop 停止监控。未在监控时调用是 no-op，重复调用安全。
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	rmLog.Info("仓位风险监控已停止")
}

// Status 返回监控循环是否在运行。纯读。
func (m *Monitor) Status() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Snapshot 返回当前仓位快照的只读副本。
// 消费方拿到的是拷贝，不会与下一个 tick 的整体替换产生竞争。
func (m *Monitor) Snapshot() []domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Position, len(m.snapshot))
	copy(out, m.snapshot)
	return out
}

// LastRefresh 返回最近一次成功刷新的时间。
func (m *Monitor) LastRefresh() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRefresh
}

// Nudge 请求尽快刷新一次（不等下一个 tick）。非阻塞，重复刺激会被合并。
func (m *Monitor) Nudge() {
	m.nudge.Emit()
}

func (m *Monitor) loop(ctx context.Context, address string, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh(ctx, address)
		case <-m.nudge.C():
			m.refresh(ctx, address)
		}
	}
}

// refresh 单个 tick：拉全量开放仓位，整体替换快照，随后做风险评估。
// fetch 出错只记账 + 保留旧快照，绝不让错误逃出调度循环。
func (m *Monitor) refresh(ctx context.Context, address string) {
	metrics.MonitorTicks.Add(1)

	positions, err := m.indexer.FetchOpenPositions(ctx, address)
	if err != nil {
		metrics.IndexerFetchErrors.Add(1)
		rmLog.Warnf("⚠️ 拉取仓位失败, 保留上一份快照: address=%s err=%v", address, err)
		return
	}

	m.mu.Lock()
	m.snapshot = positions
	m.lastRefresh = time.Now()
	m.mu.Unlock()

	m.evaluate(positions)
}

// evaluate 对快照中每个开放仓位计算强平距离，低于阈值时发告警。
// 缺 entry/liquidation 价格的仓位跳过，不报错。
func (m *Monitor) evaluate(positions []domain.Position) {
	now := time.Now()

	for i := range positions {
		pos := &positions[i]
		if !pos.IsOpen() || !pos.HasRiskPrices() {
			continue
		}

		distance := pos.LiquidationDistance()
		if !distance.LessThan(AlertThreshold) {
			continue
		}

		if !m.shouldAlert(pos.ID, now) {
			continue
		}

		alert := domain.RiskAlert{
			ID:         uuid.NewString(),
			PositionID: pos.ID,
			Owner:      pos.OwnerAddress,
			Market:     pos.Market,
			Side:       pos.Side,
			Distance:   distance,
			Severity:   domain.SeverityForDistance(distance),
			Timestamp:  now,
		}

		rmLog.Warnf("🚨 仓位接近强平: market=%s side=%s distance=%s severity=%s",
			alert.Market, alert.Side, distance.StringFixed(4), alert.Severity)

		metrics.RiskAlertsEmitted.Add(1)
		m.remember(alert)
		if m.sink != nil {
			m.sink.Emit(alert)
		}
	}
}

// recentAlertCap 告警历史保留上限
const recentAlertCap = 100

// remember 追加到告警历史，超出上限丢最旧的。
func (m *Monitor) remember(alert domain.RiskAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = append(m.recent, alert)
	if len(m.recent) > recentAlertCap {
		m.recent = m.recent[len(m.recent)-recentAlertCap:]
	}
}

// RecentAlerts 返回最近告警的只读副本（旧到新）。
func (m *Monitor) RecentAlerts() []domain.RiskAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.RiskAlert, len(m.recent))
	copy(out, m.recent)
	return out
}

// shouldAlert 冷却窗口检查：同一仓位在 cooldown 内只告警一次。
func (m *Monitor) shouldAlert(positionID string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cooldown > 0 {
		if last, ok := m.lastAlertAt[positionID]; ok && now.Sub(last) < m.cooldown {
			return false
		}
	}
	m.lastAlertAt[positionID] = now
	return true
}
