package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betbot/swapcore/internal/domain"
	"github.com/betbot/swapcore/internal/metrics"
)

var exLog = logrus.WithField("module", "swap_coordinator")

// SigningHandle 一次执行内可用的签名能力。
// 由钱包服务用凭证换出，生命周期不超过一次 Execute 调用，核心不缓存。
type SigningHandle interface {
	// Address 签名人地址
	Address() string
	// SignSwapOrder 对报价生成签名订单
	SignSwapOrder(quote *domain.SwapQuote) (*SignedOrder, error)
}

// SignedOrder 已签名、可提交给 relay 的订单
type SignedOrder struct {
	AttemptID string
	UserID    string
	Signer    string
	Quote     *domain.SwapQuote
	Salt      string // 签名域内的随机盐，防重放
	Signature string
}

// WalletService 钱包/凭证协作方边界。
// 实现方不得记录或持久化原始凭证。
type WalletService interface {
	ResolveSigningCapability(ctx context.Context, userID, credential string) (SigningHandle, error)
}

// RelayService relay 协作方边界：免 gas 提交 + 任务状态轮询。
// 轮询由调用方消费，协调器本身不轮询。
type RelayService interface {
	SubmitGaslessOrder(ctx context.Context, order *SignedOrder) (taskID string, err error)
	PollTaskStatus(ctx context.Context, taskID string) (*domain.TaskStatus, error)
}

// Journal 已提交任务的流水边界（可选）。写失败只记日志，不影响执行结果。
type Journal interface {
	RecordSubmitted(ctx context.Context, result *domain.SwapResult, quote *domain.SwapQuote) error
	RecordTaskState(ctx context.Context, taskID string, status *domain.TaskStatus) error
}

// Coordinator 交换执行协调器。
//
// 单一入口 Execute：前置检查按固定顺序进行，每一项都是独立的失败结果码
// （以 SwapResult 返回，不抛错）。协调器跨调用不持有可变共享状态，
// 提交失败不重试：relay 不保证幂等时重试金融提交是不安全的，重试归调用方。
type Coordinator struct {
	wallet  WalletService
	relay   RelayService
	journal Journal

	nowFn func() time.Time
}

// NewCoordinator 创建协调器。journal 可为 nil。
func NewCoordinator(wallet WalletService, relay RelayService, journal Journal) *Coordinator {
	return &Coordinator{
		wallet:  wallet,
		relay:   relay,
		journal: journal,
		nowFn:   time.Now,
	}
}

// Execute 提交一笔交换。
// 检查顺序：报价过期 → 凭证缺失 → 凭证换签名能力 → relay 提交。
// relay 接受后返回 provisional 的 submitted 结果（带 task ID）；
// 终态由调用方通过 RelayService.PollTaskStatus 观察。提交一旦被接受即不可中止。
func (c *Coordinator) Execute(ctx context.Context, quote *domain.SwapQuote, userID, credential string) *domain.SwapResult {
	result := &domain.SwapResult{
		AttemptID: uuid.NewString(),
	}

	if quote == nil || quote.IsExpired(c.nowFn()) {
		return c.fail(result, domain.ReasonQuoteExpired, "quote expired")
	}

	if credential == "" {
		return c.fail(result, domain.ReasonSessionLocked, "credential session locked")
	}

	handle, err := c.wallet.ResolveSigningCapability(ctx, userID, credential)
	if err != nil {
		return c.fail(result, domain.ReasonCredentialRejected, err.Error())
	}

	order, err := handle.SignSwapOrder(quote)
	if err != nil {
		return c.fail(result, domain.ReasonCredentialRejected, err.Error())
	}
	order.AttemptID = result.AttemptID
	order.UserID = userID

	taskID, err := c.relay.SubmitGaslessOrder(ctx, order)
	if err != nil {
		return c.fail(result, domain.ReasonRelaySubmissionFailed, err.Error())
	}

	// 提交成功：submitted != settled，终态交给调用方轮询
	metrics.SwapSubmissions.Add(1)
	result.Outcome = domain.SwapOutcomeSubmitted
	result.RelayTaskID = taskID
	result.SubmittedAt = c.nowFn()

	exLog.Infof("✅ 订单已提交 relay: attempt=%s task=%s market=%s->%s",
		result.AttemptID, taskID, quote.InputAsset, quote.OutputAsset)

	if c.journal != nil {
		if jerr := c.journal.RecordSubmitted(ctx, result, quote); jerr != nil {
			exLog.Warnf("⚠️ 任务流水写入失败: task=%s err=%v", taskID, jerr)
		}
	}

	return result
}

func (c *Coordinator) fail(result *domain.SwapResult, reason domain.FailureReason, detail string) *domain.SwapResult {
	metrics.SwapFailures.Add(1)
	result.Outcome = domain.SwapOutcomeFailure
	result.FailureReason = reason
	result.FailureDetail = detail
	exLog.Warnf("❌ 执行失败: attempt=%s reason=%s detail=%s", result.AttemptID, reason, detail)
	return result
}

// PendingLister 重启后待恢复轮询的任务来源
type PendingLister interface {
	PendingTaskIDs(ctx context.Context, limit int) ([]string, error)
}

// ResumePending 进程重启后对流水中未终态的任务恢复轮询，
// 每个任务一个 TrackTask goroutine。返回恢复的任务数。
func (c *Coordinator) ResumePending(ctx context.Context, lister PendingLister, interval time.Duration) int {
	ids, err := lister.PendingTaskIDs(ctx, 0)
	if err != nil {
		exLog.Warnf("⚠️ 读取待恢复任务失败: %v", err)
		return 0
	}
	for _, id := range ids {
		taskID := id
		go func() {
			status, err := c.TrackTask(ctx, taskID, interval)
			if err != nil {
				exLog.Warnf("⚠️ 恢复轮询中止: task=%s err=%v", taskID, err)
				return
			}
			exLog.Infof("恢复的任务已到终态: task=%s state=%s", taskID, status.State)
		}()
	}
	if len(ids) > 0 {
		exLog.Infof("恢复 %d 个未终态任务的轮询", len(ids))
	}
	return len(ids)
}

// TrackTask 调用方侧的轮询辅助：按 interval 轮询 relay 任务直到终态或 ctx 取消。
// 每次观察到的状态写入 journal（如果有）。
func (c *Coordinator) TrackTask(ctx context.Context, taskID string, interval time.Duration) (*domain.TaskStatus, error) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.relay.PollTaskStatus(ctx, taskID)
		if err != nil {
			exLog.Warnf("⚠️ 任务轮询失败: task=%s err=%v", taskID, err)
		} else {
			if c.journal != nil {
				if jerr := c.journal.RecordTaskState(ctx, taskID, status); jerr != nil {
					exLog.Warnf("⚠️ 任务状态写入失败: task=%s err=%v", taskID, jerr)
				}
			}
			if status.State != domain.TaskStatePending {
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
