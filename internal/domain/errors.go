package domain

import "errors"

// FailureReason 业务失败原因码。这些是业务结果，不是程序异常：
// 调用方通过 SwapResult / 返回值拿到它们，核心组件不向上抛。
type FailureReason string

const (
	// ReasonSessionLocked 凭证会话未解锁或已过期
	ReasonSessionLocked FailureReason = "session_locked"
	// ReasonQuoteExpired 报价已过期（执行前检查，无副作用）
	ReasonQuoteExpired FailureReason = "quote_expired"
	// ReasonCredentialRejected 钱包服务拒绝了凭证
	ReasonCredentialRejected FailureReason = "credential_rejected"
	// ReasonRelaySubmissionFailed relay 拒绝了订单提交
	ReasonRelaySubmissionFailed FailureReason = "relay_submission_failed"
)

var (
	// ErrIndexerFetchFailed 仓位查询失败（tick 内部消化，不中断监控循环）
	ErrIndexerFetchFailed = errors.New("indexer fetch failed")

	// ErrConfigurationInvalid 启动期配置校验失败（不做逐次调用检查）
	ErrConfigurationInvalid = errors.New("configuration invalid")
)
