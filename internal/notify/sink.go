// Package notify 实现通知 sink：日志 sink 与 webhook sink。
// Emit 是 fire-and-forget，核心不等待确认。
package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/swapcore/internal/domain"
	sdkhttp "github.com/betbot/swapcore/pkg/sdk/http"
)

var ntLog = logrus.WithField("module", "notify")

// LogSink 只写日志的 sink（默认）
type LogSink struct{}

// Emit 输出告警日志
func (LogSink) Emit(alert domain.RiskAlert) {
	ntLog.Warnf("🚨 [%s] %s %s 距强平 %s (position=%s owner=%s)",
		alert.Severity, alert.Market, alert.Side,
		alert.Distance.StringFixed(4), alert.PositionID, alert.Owner)
}

// WebhookSink 把告警 POST 到外部 webhook，投递失败只记日志
type WebhookSink struct {
	http *sdkhttp.Client
}

// NewWebhookSink 创建 webhook sink
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{http: sdkhttp.NewClient(url)}
}

type alertPayload struct {
	ID         string `json:"id"`
	PositionID string `json:"position_id"`
	Owner      string `json:"owner"`
	Market     string `json:"market"`
	Side       string `json:"side"`
	Distance   string `json:"distance"`
	Severity   string `json:"severity"`
	Timestamp  string `json:"timestamp"`
}

// Emit 异步投递，不阻塞监控 tick
func (s *WebhookSink) Emit(alert domain.RiskAlert) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		payload := alertPayload{
			ID:         alert.ID,
			PositionID: alert.PositionID,
			Owner:      alert.Owner,
			Market:     alert.Market,
			Side:       string(alert.Side),
			Distance:   alert.Distance.String(),
			Severity:   string(alert.Severity),
			Timestamp:  alert.Timestamp.Format(time.RFC3339),
		}
		resp, err := s.http.DoRequest(ctx, "POST", "", &sdkhttp.RequestOptions{Data: payload}, nil)
		if err := sdkhttp.ParseHTTPError(resp, err); err != nil {
			ntLog.Warnf("⚠️ webhook 投递失败: alert=%s err=%v", alert.ID, err)
		}
	}()
}
