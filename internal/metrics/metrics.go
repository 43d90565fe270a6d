package metrics

import "expvar"

var (
	SwapSubmissions    = expvar.NewInt("swap_submissions")
	SwapFailures       = expvar.NewInt("swap_failures")
	MonitorTicks       = expvar.NewInt("monitor_ticks")
	IndexerFetchErrors = expvar.NewInt("indexer_fetch_errors")
	RiskAlertsEmitted  = expvar.NewInt("risk_alerts_emitted")
	SessionUnlocks     = expvar.NewInt("session_unlocks")
	SessionAutoLocks   = expvar.NewInt("session_auto_locks")
)
