package session

import (
	"testing"
	"time"
)

func TestGuardInitiallyLocked(t *testing.T) {
	g := NewGuard(time.Minute)
	if g.IsUnlocked() {
		t.Fatal("新建守卫应处于 Locked 状态")
	}
	if _, ok := g.Credential(); ok {
		t.Fatal("Locked 状态不应返回凭证")
	}
}

func TestGuardUnlockAndRead(t *testing.T) {
	g := NewGuard(time.Minute)
	g.Unlock("hunter2")

	if !g.IsUnlocked() {
		t.Fatal("Unlock 后应处于 Unlocked 状态")
	}
	cred, ok := g.Credential()
	if !ok || cred != "hunter2" {
		t.Fatalf("期望返回凭证 hunter2, got=%q ok=%v", cred, ok)
	}
}

func TestGuardLazyTTLExpiry(t *testing.T) {
	// 用注入时钟模拟定时器回调没来得及触发的场景（如系统休眠）
	now := time.Now()
	g := NewGuard(time.Minute)
	g.nowFn = func() time.Time { return now }

	g.Unlock("hunter2")

	// TTL 窗口内可读
	now = now.Add(59 * time.Second)
	if _, ok := g.Credential(); !ok {
		t.Fatal("TTL 窗口内应能读到凭证")
	}

	// 跨过 TTL：读取路径兜底，强制转 Locked
	now = now.Add(2 * time.Second)
	if _, ok := g.Credential(); ok {
		t.Fatal("TTL 过期后不应返回凭证")
	}
	if g.IsUnlocked() {
		t.Fatal("TTL 过期后应为 Locked")
	}
}

func TestGuardReUnlockResetsTTL(t *testing.T) {
	now := time.Now()
	g := NewGuard(time.Minute)
	g.nowFn = func() time.Time { return now }

	g.Unlock("first")
	now = now.Add(50 * time.Second)
	g.Unlock("second")

	// 距第二次解锁 50s（距第一次 100s）：TTL 应从第二次重新计
	now = now.Add(50 * time.Second)
	cred, ok := g.Credential()
	if !ok || cred != "second" {
		t.Fatalf("重复解锁后 TTL 应重置, got=%q ok=%v", cred, ok)
	}
}

func TestGuardReUnlockReplacesTimer(t *testing.T) {
	g := NewGuard(time.Hour)

	g.Unlock("first")
	firstTimer := g.autoLock
	g.Unlock("second")

	if g.autoLock == firstTimer {
		t.Fatal("重复解锁应替换定时器句柄")
	}
	// 第一个句柄的回调即便已经入队，generation 校验也会把它挡掉
	g.autoLockFired(1)
	if !g.IsUnlocked() {
		t.Fatal("残留回调不应锁掉重新解锁的会话")
	}
}

func TestGuardLockIdempotent(t *testing.T) {
	g := NewGuard(time.Minute)
	g.Unlock("hunter2")

	g.Lock()
	g.Lock() // 重复上锁安全

	if g.IsUnlocked() {
		t.Fatal("Lock 后应为 Locked")
	}
	if _, ok := g.Credential(); ok {
		t.Fatal("Lock 后不应返回凭证")
	}
}

func TestGuardLockWhenAlreadyLocked(t *testing.T) {
	g := NewGuard(time.Minute)
	g.Lock() // Locked 状态上锁是 no-op，不 panic
	if g.IsUnlocked() {
		t.Fatal("应保持 Locked")
	}
}

func TestGuardAutoLockFires(t *testing.T) {
	g := NewGuard(20 * time.Millisecond)
	g.Unlock("hunter2")

	time.Sleep(60 * time.Millisecond)

	if g.IsUnlocked() {
		t.Fatal("TTL 到期后定时器应自动上锁")
	}
}

func TestGuardZeroTTLUsesDefault(t *testing.T) {
	g := NewGuard(0)
	if g.ttl != DefaultTTL {
		t.Fatalf("ttl<=0 应回退默认值, got=%s", g.ttl)
	}
}
