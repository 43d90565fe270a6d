// Package controlplane 提供本地控制 API（gin）：
// 会话解锁/上锁、交换提交、监控状态查询。默认只监听 localhost。
package controlplane

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/betbot/swapcore/internal/domain"
	"github.com/betbot/swapcore/internal/execution"
	"github.com/betbot/swapcore/internal/riskmonitor"
	"github.com/betbot/swapcore/internal/session"
	"github.com/betbot/swapcore/pkg/config"
	"github.com/betbot/swapcore/pkg/logger"
)

// Server 控制 API
type Server struct {
	guard       *session.Guard
	coordinator *execution.Coordinator
	monitor     *riskmonitor.Monitor
	relayCfg    config.RelayConfig
	engine      *gin.Engine
	httpSrv     *http.Server
}

// NewServer 创建控制 API。relayCfg 提供启动期校验过的手续费默认值。
func NewServer(guard *session.Guard, coordinator *execution.Coordinator, monitor *riskmonitor.Monitor, relayCfg config.RelayConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		guard:       guard,
		coordinator: coordinator,
		monitor:     monitor,
		relayCfg:    relayCfg,
		engine:      engine,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.POST("/session/unlock", s.handleUnlock)
	s.engine.POST("/session/lock", s.handleLock)
	s.engine.GET("/status", s.handleStatus)
	s.engine.POST("/swap", s.handleSwap)
	s.engine.GET("/positions", s.handlePositions)
	s.engine.GET("/alerts", s.handleAlerts)
}

type unlockRequest struct {
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleUnlock(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}
	s.guard.Unlock(req.Password)
	c.JSON(http.StatusOK, gin.H{"unlocked": true})
}

func (s *Server) handleLock(c *gin.Context) {
	s.guard.Lock()
	c.JSON(http.StatusOK, gin.H{"unlocked": false})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session_unlocked": s.guard.IsUnlocked(),
		"monitor_running":  s.monitor.Status(),
		"last_refresh":     s.monitor.LastRefresh(),
	})
}

type swapRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	InputAsset      string `json:"input_asset" binding:"required"`
	OutputAsset     string `json:"output_asset" binding:"required"`
	InputAmount     string `json:"input_amount" binding:"required"`
	MinOutputAmount string `json:"min_output_amount" binding:"required"`
	FeeBps          int    `json:"fee_bps"`
	FeeRecipient    string `json:"fee_recipient"`
	ExpiresAt       int64  `json:"expires_at" binding:"required"` // unix seconds
}

func (s *Server) handleSwap(c *gin.Context) {
	var req swapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inputAmount, err := decimal.NewFromString(req.InputAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input_amount"})
		return
	}
	minOutput, err := decimal.NewFromString(req.MinOutputAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_output_amount"})
		return
	}

	// 手续费字段缺省时回落到启动期校验过的配置值。
	// 请求形状问题在这里 400 挡下，不能走到签名阶段变成凭证类失败。
	feeRecipient := req.FeeRecipient
	if feeRecipient == "" {
		feeRecipient = s.relayCfg.FeeRecipient
	}
	if feeRecipient == "" || !common.IsHexAddress(feeRecipient) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or malformed fee_recipient"})
		return
	}
	feeBps := req.FeeBps
	if feeBps == 0 {
		feeBps = s.relayCfg.FeeBps
	}
	if feeBps < 0 || feeBps > 10_000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fee_bps out of range"})
		return
	}

	quote := &domain.SwapQuote{
		InputAsset:      req.InputAsset,
		OutputAsset:     req.OutputAsset,
		InputAmount:     inputAmount,
		MinOutputAmount: minOutput,
		FeeBps:          feeBps,
		FeeRecipient:    feeRecipient,
		Mode:            domain.ExecutionModeGasless,
		ExpiresAt:       time.Unix(req.ExpiresAt, 0),
	}

	// 凭证只在这一次调用内经手，不缓存
	credential, _ := s.guard.Credential()
	result := s.coordinator.Execute(c.Request.Context(), quote, req.UserID, credential)

	status := http.StatusOK
	if result.Outcome == domain.SwapOutcomeFailure {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{
		"attempt_id":     result.AttemptID,
		"outcome":        result.Outcome,
		"relay_task_id":  result.RelayTaskID,
		"failure_reason": result.FailureReason,
		"failure_detail": result.FailureDetail,
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.monitor.Snapshot()})
}

func (s *Server) handleAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": s.monitor.RecentAlerts()})
}

// StartAsync 启动控制 API（非阻塞），ctx.Done() 时优雅关闭
func (s *Server) StartAsync(ctx context.Context, listenAddr string) {
	s.httpSrv = &http.Server{
		Addr:    listenAddr,
		Handler: s.engine,
	}

	go func() {
		logger.Infof("控制 API 监听: %s", listenAddr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("控制 API 退出: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
	}()
}
