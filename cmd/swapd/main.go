package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/swapcore/internal/controlplane"
	"github.com/betbot/swapcore/internal/execution"
	"github.com/betbot/swapcore/internal/metrics"
	"github.com/betbot/swapcore/internal/notify"
	"github.com/betbot/swapcore/internal/relay"
	"github.com/betbot/swapcore/internal/riskmonitor"
	"github.com/betbot/swapcore/internal/session"
	"github.com/betbot/swapcore/internal/taskstore"
	"github.com/betbot/swapcore/internal/wallet"
	"github.com/betbot/swapcore/pkg/config"
	"github.com/betbot/swapcore/pkg/logger"
	"github.com/betbot/swapcore/pkg/sdk/api"
	"github.com/betbot/swapcore/pkg/sdk/websocket"
	"github.com/betbot/swapcore/pkg/secretstore"
	"github.com/betbot/swapcore/pkg/shutdown"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "yml/swapd.yaml", "配置文件路径")
	owner := flag.String("owner", "", "监控仓位的钱包地址（覆盖 SWAPCORE_OWNER）")
	flag.Parse()

	// 加载 .env（尽力而为，缺失则退回真实环境变量）
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "日志初始化失败: %v\n", err)
		os.Exit(1)
	}

	ownerAddr := *owner
	if ownerAddr == "" {
		ownerAddr = os.Getenv("SWAPCORE_OWNER")
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	sm := shutdown.NewManager()

	// ---- secretstore（长期秘密：包裹后的助记词）----
	var storeKey []byte
	if cfg.Wallet.SecretStoreKey != "" {
		storeKey, err = secretstore.ParseKey(cfg.Wallet.SecretStoreKey)
		if err != nil {
			logger.Errorf("secretstore key 非法: %v", err)
			os.Exit(1)
		}
	}
	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.Wallet.SecretStorePath,
		EncryptionKey: storeKey,
	})
	if err != nil {
		logger.Errorf("secretstore 打开失败: %v", err)
		os.Exit(1)
	}
	sm.OnShutdown(func(ctx context.Context) {
		_ = store.Close()
	})

	// relay 凭证：配置/环境变量优先，缺省回落到 secretstore
	if cfg.Relay.APIKey == "" {
		if v, ok, _ := store.Get(secretstore.KeyRelayAPIKey); ok {
			cfg.Relay.APIKey = v
		}
		if v, ok, _ := store.Get(secretstore.KeyRelayAPISecret); ok {
			cfg.Relay.APISecret = v
		}
		if v, ok, _ := store.Get(secretstore.KeyRelayPassphrase); ok {
			cfg.Relay.Passphrase = v
		}
	}

	// ---- 会话守卫 ----
	guard := session.NewGuard(cfg.Session.TTL())
	sm.OnShutdown(func(ctx context.Context) {
		// 退出前清零凭证
		guard.Lock()
	})

	// ---- 钱包 / relay / 流水 → 执行协调器 ----
	walletSvc := wallet.NewService(store, cfg.Wallet.DerivationPath, int64(cfg.Relay.ChainID))

	relayClient := api.NewRelayClient(cfg.Relay.BaseURL, cfg.Relay.ChainID, &api.RelayCreds{
		Key:        cfg.Relay.APIKey,
		Secret:     cfg.Relay.APISecret,
		Passphrase: cfg.Relay.Passphrase,
	})
	relayAdapter := relay.NewAdapter(relayClient)

	var journal execution.Journal
	var pending execution.PendingLister
	if cfg.TaskDBPath != "" {
		ts, err := taskstore.Open(cfg.TaskDBPath)
		if err != nil {
			logger.Errorf("任务流水库打开失败: %v", err)
			os.Exit(1)
		}
		journal = ts
		pending = ts
		sm.OnShutdown(func(ctx context.Context) {
			_ = ts.Close()
		})
	}

	coordinator := execution.NewCoordinator(walletSvc, relayAdapter, journal)

	// 上次进程退出时仍未终态的任务，重启后继续轮询到终态
	if pending != nil {
		coordinator.ResumePending(rootCtx, pending, 0)
	}

	// ---- 仓位风险监控 ----
	indexerClient := api.NewIndexerClient(cfg.Indexer.BaseURL)

	var sink riskmonitor.Sink = notify.LogSink{}
	if cfg.Notify.WebhookURL != "" {
		sink = notify.NewWebhookSink(cfg.Notify.WebhookURL)
	}

	monitor := riskmonitor.NewMonitor(indexerClient, sink)
	monitor.SetAlertCooldown(cfg.Monitor.Cooldown())

	if ownerAddr != "" {
		monitor.Start(rootCtx, ownerAddr, cfg.Monitor.Interval())
		sm.OnShutdown(func(ctx context.Context) {
			monitor.Stop()
		})

		// 可选：indexer 推送流，仓位变更时立刻刷新，不等下一个 tick
		if cfg.Indexer.WSURL != "" {
			stream := websocket.NewPositionStream(cfg.Indexer.WSURL, ownerAddr, func(string) {
				monitor.Nudge()
			})
			if err := stream.Start(rootCtx); err != nil {
				logger.Warnf("仓位推送流启动失败（仅影响刷新时效）: %v", err)
			} else {
				sm.OnShutdown(func(ctx context.Context) {
					stream.Stop()
				})
			}
		}
	} else {
		logger.Warn("未指定 owner 地址，仓位风险监控未启动")
	}

	// ---- metrics / debug ----
	if cfg.MetricsAPI != "" {
		if _, err := metrics.StartAsync(rootCtx, cfg.MetricsAPI); err != nil {
			logger.Warnf("metrics 服务启动失败: %v", err)
		}
	}

	// ---- 控制 API ----
	if cfg.ControlAPI != "" {
		ctrl := controlplane.NewServer(guard, coordinator, monitor, cfg.Relay)
		ctrl.StartAsync(rootCtx, cfg.ControlAPI)
	}

	logger.Info("✅ swapd 启动完成")

	// 等待退出信号
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	logger.Info("收到退出信号，开始优雅关闭")
	rootCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sm.Shutdown(shutdownCtx)

	fmt.Println("swapd stopped")
}
