package execution

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/swapcore/internal/domain"
)

// ---- 测试用协作方 ----

type fakeHandle struct {
	signErr error
}

func (h *fakeHandle) Address() string { return "0x00000000000000000000000000000000000000aa" }

func (h *fakeHandle) SignSwapOrder(quote *domain.SwapQuote) (*SignedOrder, error) {
	if h.signErr != nil {
		return nil, h.signErr
	}
	return &SignedOrder{
		Signer:    h.Address(),
		Quote:     quote,
		Salt:      "12345",
		Signature: "0xsigned",
	}, nil
}

type fakeWallet struct {
	resolveErr error
	handle     *fakeHandle
	calls      int
}

func (w *fakeWallet) ResolveSigningCapability(ctx context.Context, userID, credential string) (SigningHandle, error) {
	w.calls++
	if w.resolveErr != nil {
		return nil, w.resolveErr
	}
	return w.handle, nil
}

type fakeRelay struct {
	submitErr   error
	taskID      string
	submitCalls int
	lastOrder   *SignedOrder

	statuses []*domain.TaskStatus
	pollIdx  int
}

func (r *fakeRelay) SubmitGaslessOrder(ctx context.Context, order *SignedOrder) (string, error) {
	r.submitCalls++
	r.lastOrder = order
	if r.submitErr != nil {
		return "", r.submitErr
	}
	return r.taskID, nil
}

func (r *fakeRelay) PollTaskStatus(ctx context.Context, taskID string) (*domain.TaskStatus, error) {
	if r.pollIdx >= len(r.statuses) {
		return &domain.TaskStatus{TaskID: taskID, State: domain.TaskStatePending}, nil
	}
	s := r.statuses[r.pollIdx]
	r.pollIdx++
	return s, nil
}

func validQuote() *domain.SwapQuote {
	return &domain.SwapQuote{
		InputAsset:      "0x2791bca1f2de4661ed88a30c99a7a9449aa84174",
		OutputAsset:     "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619",
		InputAmount:     decimal.NewFromInt(100),
		MinOutputAmount: decimal.NewFromFloat(0.05),
		Mode:            domain.ExecutionModeGasless,
		ExpiresAt:       time.Now().Add(time.Minute),
	}
}

// ---- 前置检查顺序与失败结果码 ----

func TestExecuteExpiredQuoteShortCircuits(t *testing.T) {
	wallet := &fakeWallet{handle: &fakeHandle{}}
	relay := &fakeRelay{taskID: "task-1"}
	c := NewCoordinator(wallet, relay, nil)

	quote := validQuote()
	quote.ExpiresAt = time.Now().Add(-time.Second)

	result := c.Execute(context.Background(), quote, "u1", "pw")

	if result.Outcome != domain.SwapOutcomeFailure {
		t.Fatalf("期望失败结果, got=%s", result.Outcome)
	}
	if result.FailureReason != domain.ReasonQuoteExpired {
		t.Fatalf("期望 QuoteExpired, got=%s", result.FailureReason)
	}
	// 过期报价在第一道检查挡下，后面的协作方不应被触碰
	if wallet.calls != 0 || relay.submitCalls != 0 {
		t.Fatalf("过期报价不应触碰协作方: wallet=%d relay=%d", wallet.calls, relay.submitCalls)
	}
}

func TestExecuteNilQuoteTreatedAsExpired(t *testing.T) {
	c := NewCoordinator(&fakeWallet{handle: &fakeHandle{}}, &fakeRelay{}, nil)
	result := c.Execute(context.Background(), nil, "u1", "pw")
	if result.FailureReason != domain.ReasonQuoteExpired {
		t.Fatalf("nil 报价应按过期处理, got=%s", result.FailureReason)
	}
}

func TestExecuteLockedSessionBeforeWallet(t *testing.T) {
	wallet := &fakeWallet{handle: &fakeHandle{}}
	c := NewCoordinator(wallet, &fakeRelay{taskID: "task-1"}, nil)

	result := c.Execute(context.Background(), validQuote(), "u1", "")

	if result.FailureReason != domain.ReasonSessionLocked {
		t.Fatalf("期望 SessionLocked, got=%s", result.FailureReason)
	}
	if wallet.calls != 0 {
		t.Fatal("会话锁定时不应调用钱包")
	}
}

func TestExecuteCredentialRejected(t *testing.T) {
	wallet := &fakeWallet{resolveErr: fmt.Errorf("credential rejected")}
	relay := &fakeRelay{taskID: "task-1"}
	c := NewCoordinator(wallet, relay, nil)

	result := c.Execute(context.Background(), validQuote(), "u1", "wrong-pw")

	if result.FailureReason != domain.ReasonCredentialRejected {
		t.Fatalf("期望 CredentialRejected, got=%s", result.FailureReason)
	}
	if relay.submitCalls != 0 {
		t.Fatal("凭证被拒后不应提交 relay")
	}
}

func TestExecuteSignFailureMapsToCredentialRejected(t *testing.T) {
	wallet := &fakeWallet{handle: &fakeHandle{signErr: fmt.Errorf("sign failed")}}
	c := NewCoordinator(wallet, &fakeRelay{}, nil)

	result := c.Execute(context.Background(), validQuote(), "u1", "pw")
	if result.FailureReason != domain.ReasonCredentialRejected {
		t.Fatalf("签名失败应映射 CredentialRejected, got=%s", result.FailureReason)
	}
}

func TestExecuteRelaySubmissionFailed(t *testing.T) {
	relay := &fakeRelay{submitErr: fmt.Errorf("502 bad gateway")}
	c := NewCoordinator(&fakeWallet{handle: &fakeHandle{}}, relay, nil)

	result := c.Execute(context.Background(), validQuote(), "u1", "pw")

	if result.FailureReason != domain.ReasonRelaySubmissionFailed {
		t.Fatalf("期望 RelaySubmissionFailed, got=%s", result.FailureReason)
	}
	// 不重试：relay 恰好被调用一次
	if relay.submitCalls != 1 {
		t.Fatalf("提交失败不应重试, calls=%d", relay.submitCalls)
	}
}

// ---- 成功路径 ----

func TestExecuteSubmittedIsProvisional(t *testing.T) {
	relay := &fakeRelay{taskID: "task-42"}
	c := NewCoordinator(&fakeWallet{handle: &fakeHandle{}}, relay, nil)

	result := c.Execute(context.Background(), validQuote(), "u1", "pw")

	if result.Outcome != domain.SwapOutcomeSubmitted {
		t.Fatalf("期望 submitted, got=%s", result.Outcome)
	}
	if result.RelayTaskID != "task-42" {
		t.Fatalf("应带回 relay 任务 ID, got=%q", result.RelayTaskID)
	}
	// submitted 是临时态，不是终态
	if result.IsTerminal() {
		t.Fatal("submitted 不应是终态")
	}
	if result.FailureReason != "" {
		t.Fatalf("成功路径不应有失败码, got=%s", result.FailureReason)
	}
	if relay.lastOrder == nil || relay.lastOrder.AttemptID != result.AttemptID {
		t.Fatal("提交的订单应带 attempt ID")
	}
}

func TestExecuteJournalFailureIsNonFatal(t *testing.T) {
	c := NewCoordinator(&fakeWallet{handle: &fakeHandle{}}, &fakeRelay{taskID: "t"}, failingJournal{})

	result := c.Execute(context.Background(), validQuote(), "u1", "pw")
	if result.Outcome != domain.SwapOutcomeSubmitted {
		t.Fatalf("流水写入失败不应影响执行结果, got=%s", result.Outcome)
	}
}

type failingJournal struct{}

func (failingJournal) RecordSubmitted(ctx context.Context, result *domain.SwapResult, quote *domain.SwapQuote) error {
	return fmt.Errorf("disk full")
}

func (failingJournal) RecordTaskState(ctx context.Context, taskID string, status *domain.TaskStatus) error {
	return fmt.Errorf("disk full")
}

// ---- 重启恢复 ----

type fakeLister struct {
	ids []string
	err error
}

func (l *fakeLister) PendingTaskIDs(ctx context.Context, limit int) ([]string, error) {
	return l.ids, l.err
}

type recordingJournal struct {
	mu     sync.Mutex
	states map[string]domain.TaskState
}

func (j *recordingJournal) RecordSubmitted(ctx context.Context, result *domain.SwapResult, quote *domain.SwapQuote) error {
	return nil
}

func (j *recordingJournal) RecordTaskState(ctx context.Context, taskID string, status *domain.TaskStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.states == nil {
		j.states = make(map[string]domain.TaskState)
	}
	j.states[taskID] = status.State
	return nil
}

func (j *recordingJournal) stateOf(taskID string) (domain.TaskState, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s, ok := j.states[taskID]
	return s, ok
}

func TestResumePendingPollsToTerminal(t *testing.T) {
	relay := &fakeRelay{
		statuses: []*domain.TaskStatus{
			{TaskID: "t1", State: domain.TaskStateSuccess, TransactionID: "0xabc"},
		},
	}
	journal := &recordingJournal{}
	c := NewCoordinator(&fakeWallet{handle: &fakeHandle{}}, relay, journal)

	n := c.ResumePending(context.Background(), &fakeLister{ids: []string{"t1"}}, 5*time.Millisecond)
	if n != 1 {
		t.Fatalf("应恢复 1 个任务, got=%d", n)
	}

	deadline := time.Now().Add(time.Second)
	for {
		if state, ok := journal.stateOf("t1"); ok && state == domain.TaskStateSuccess {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("恢复的任务应轮询到终态并写入流水")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestResumePendingListerFailure(t *testing.T) {
	c := NewCoordinator(&fakeWallet{handle: &fakeHandle{}}, &fakeRelay{}, nil)
	if n := c.ResumePending(context.Background(), &fakeLister{err: fmt.Errorf("db closed")}, time.Second); n != 0 {
		t.Fatalf("读取失败应返回 0, got=%d", n)
	}
}

// ---- 任务轮询 ----

func TestTrackTaskStopsAtTerminalState(t *testing.T) {
	relay := &fakeRelay{
		statuses: []*domain.TaskStatus{
			{TaskID: "t", State: domain.TaskStatePending},
			{TaskID: "t", State: domain.TaskStateSuccess, TransactionID: "0xabc"},
		},
	}
	c := NewCoordinator(&fakeWallet{handle: &fakeHandle{}}, relay, nil)

	status, err := c.TrackTask(context.Background(), "t", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("TrackTask 出错: %v", err)
	}
	if status.State != domain.TaskStateSuccess || status.TransactionID != "0xabc" {
		t.Fatalf("期望终态 success, got=%+v", status)
	}
}

func TestTrackTaskHonorsContextCancel(t *testing.T) {
	relay := &fakeRelay{} // 永远 pending
	c := NewCoordinator(&fakeWallet{handle: &fakeHandle{}}, relay, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := c.TrackTask(ctx, "t", 5*time.Millisecond); err == nil {
		t.Fatal("ctx 取消后应返回错误")
	}
}
