package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/swapcore/internal/metrics"
)

var sgLog = logrus.WithField("module", "session_guard")

// DefaultTTL 凭证会话默认存活时长
const DefaultTTL = 30 * time.Minute

// Guard 凭证会话守卫：两个状态（Locked / Unlocked）+ 一个自有的自动上锁定时器。
//
// 约束：
//   - 定时器句柄是 Guard 自己的单一状态，不是 fire-and-forget：
//     每次 Unlock / Lock 都先取消旧句柄再继续，避免残留回调把重新解锁的会话提前锁掉
//   - TTL 在每次读取时惰性检查（定时器回调没来得及触发也一样过期，例如系统休眠后）
//   - 凭证是唯一的秘密共享资源，归 Guard 独占；上锁/过期时字节清零
//
// Guard 不返回错误：它只变更状态并返回可选值。
type Guard struct {
	mu         sync.Mutex
	ttl        time.Duration
	credential []byte
	unlockedAt time.Time
	autoLock   *time.Timer
	generation uint64

	nowFn func() time.Time
}

// NewGuard 创建会话守卫。ttl <= 0 时使用 DefaultTTL。
func NewGuard(ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{
		ttl:   ttl,
		nowFn: time.Now,
	}
}

// Unlock 解锁会话：存入凭证、盖上 unlockedAt、调度一次性的自动上锁回调。
// 已解锁状态下再次调用会替换定时器（只允许存在一个待触发回调），TTL 从本次重新计。
func (g *Guard) Unlock(password string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// 先取消旧回调，再调度新回调
	g.cancelTimerLocked()
	g.zeroizeLocked()

	g.credential = []byte(password)
	g.unlockedAt = g.nowFn()
	g.generation++

	gen := g.generation
	g.autoLock = time.AfterFunc(g.ttl, func() {
		g.autoLockFired(gen)
	})

	metrics.SessionUnlocks.Add(1)
	sgLog.Infof("会话已解锁, ttl=%s", g.ttl)
}

// Lock 无条件上锁：清零凭证、取消待触发的自动上锁回调。重复调用安全。
func (g *Guard) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lockLocked()
}

// Credential 返回凭证（仅在已解锁且 TTL 未过期时）。
// 若 TTL 已悄然过期（回调未触发），这里会强制转为 Locked 并返回 absent：
// TTL 由每次读取兜底，不只依赖定时器。
func (g *Guard) Credential() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.credential == nil {
		return "", false
	}
	if g.expiredLocked() {
		sgLog.Info("会话 TTL 已过期，读取时强制上锁")
		g.lockLocked()
		return "", false
	}
	return string(g.credential), true
}

// IsUnlocked 纯谓词：状态 + 实时 TTL 检查，无副作用。
func (g *Guard) IsUnlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.credential != nil && !g.expiredLocked()
}

// UnlockedAt 返回最近一次解锁时间（未解锁时为零值）。
func (g *Guard) UnlockedAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlockedAt
}

func (g *Guard) expiredLocked() bool {
	return g.nowFn().Sub(g.unlockedAt) >= g.ttl
}

func (g *Guard) lockLocked() {
	g.cancelTimerLocked()
	g.zeroizeLocked()
	g.unlockedAt = time.Time{}
	g.generation++
}

func (g *Guard) cancelTimerLocked() {
	if g.autoLock != nil {
		g.autoLock.Stop()
		g.autoLock = nil
	}
}

func (g *Guard) zeroizeLocked() {
	for i := range g.credential {
		g.credential[i] = 0
	}
	g.credential = nil
}

// autoLockFired 定时器回调。generation 校验挡住与 Stop 竞态的残留回调：
// 回调排队期间若发生过 Lock/Unlock，gen 不再匹配，直接忽略。
func (g *Guard) autoLockFired(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.generation {
		return
	}
	metrics.SessionAutoLocks.Add(1)
	sgLog.Info("TTL 到期，自动上锁")
	g.lockLocked()
}
