// Package relay 把 relay REST 客户端适配到执行协调器的协作方边界上
package relay

import (
	"context"

	"github.com/betbot/swapcore/internal/domain"
	"github.com/betbot/swapcore/internal/execution"
	"github.com/betbot/swapcore/pkg/sdk/api"
)

// Adapter 实现 execution.RelayService
type Adapter struct {
	client *api.RelayClient
}

// NewAdapter 创建适配器
func NewAdapter(client *api.RelayClient) *Adapter {
	return &Adapter{client: client}
}

// SubmitGaslessOrder 提交签名订单，返回异步任务 ID
func (a *Adapter) SubmitGaslessOrder(ctx context.Context, order *execution.SignedOrder) (string, error) {
	q := order.Quote
	resp, err := a.client.SubmitOrder(ctx, api.SwapOrderRequest{
		From:            order.Signer,
		InputAsset:      q.InputAsset,
		OutputAsset:     q.OutputAsset,
		InputAmount:     q.InputAmount.String(),
		MinOutputAmount: q.MinOutputAmount.String(),
		FeeBps:          q.FeeBps,
		FeeRecipient:    q.FeeRecipient,
		Deadline:        q.ExpiresAt.Unix(),
		Salt:            order.Salt,
		Signature:       order.Signature,
		Metadata:        order.AttemptID,
	})
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

// PollTaskStatus 查询任务状态并映射到领域状态
func (a *Adapter) PollTaskStatus(ctx context.Context, taskID string) (*domain.TaskStatus, error) {
	resp, err := a.client.TaskStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &domain.TaskStatus{
		TaskID:        resp.TaskID,
		State:         mapState(resp.State),
		TransactionID: resp.TransactionHash,
		Reason:        resp.Error,
	}, nil
}

// mapState relay 侧状态到领域状态。
// 没认出来的状态按 pending 处理，由调用方继续轮询，不臆断成败。
func mapState(state string) domain.TaskState {
	switch state {
	case "executed", "success", "confirmed":
		return domain.TaskStateSuccess
	case "failed", "cancelled", "reverted":
		return domain.TaskStateFailure
	default:
		return domain.TaskStatePending
	}
}
