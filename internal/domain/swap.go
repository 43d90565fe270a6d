package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionMode 执行模式
type ExecutionMode string

const (
	// ExecutionModeGasless 免 gas 执行：由 relay 代付链上费用，异步返回 task ID
	ExecutionModeGasless ExecutionMode = "gasless"
)

// SwapQuote 交换报价（由定价服务签发，签发后不可变）
type SwapQuote struct {
	InputAsset      string          // 输入资产地址
	OutputAsset     string          // 输出资产地址
	InputAmount     decimal.Decimal // 输入数量
	MinOutputAmount decimal.Decimal // 最小输出数量（滑点保护）
	FeeBps          int             // 手续费（基点）
	FeeRecipient    string          // 手续费接收地址
	Mode            ExecutionMode   // 执行模式
	ExpiresAt       time.Time       // 报价过期时间
}

// IsExpired 检查报价在 now 时刻是否已过期
func (q *SwapQuote) IsExpired(now time.Time) bool {
	return !q.ExpiresAt.After(now)
}

// SwapOutcome 交换结果状态
type SwapOutcome string

const (
	// SwapOutcomeSubmitted 已提交到 relay，等待异步结算（不等于成功）
	SwapOutcomeSubmitted SwapOutcome = "submitted"
	SwapOutcomeSuccess   SwapOutcome = "success"
	SwapOutcomeFailure   SwapOutcome = "failure"
)

// SwapResult 一次执行尝试的结果。终态（success/failure）之后不再变更。
type SwapResult struct {
	AttemptID     string          // 本次执行尝试 ID
	Outcome       SwapOutcome     // 结果状态
	TransactionID string          // 链上交易标识（结算后才有）
	RelayTaskID   string          // relay 异步任务 ID（提交成功后即有）
	FailureReason FailureReason   // 失败原因（失败时才有）
	FailureDetail string          // 协作方返回的原始错误信息
	SubmittedAt   time.Time       // 提交时间
}

// IsTerminal 检查结果是否已是终态
func (r *SwapResult) IsTerminal() bool {
	return r.Outcome == SwapOutcomeSuccess || r.Outcome == SwapOutcomeFailure
}

// TaskState relay 异步任务状态
type TaskState string

const (
	TaskStatePending TaskState = "pending"
	TaskStateSuccess TaskState = "success"
	TaskStateFailure TaskState = "failure"
)

// TaskStatus relay 任务轮询结果
type TaskStatus struct {
	TaskID        string
	State         TaskState
	TransactionID string // State == success 时有效
	Reason        string // State == failure 时有效
}
