package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginSuccessTotal     prometheus.Counter
	LoginFailureTotal     prometheus.Counter
	AccountLockoutsTotal  prometheus.Counter
	TokensIssuedTotal     prometheus.Counter
	TokensRefreshedTotal  prometheus.Counter
	TokenExchangesTotal   prometheus.Counter
	MfaChallengesTotal    prometheus.Counter
	MfaVerificationsTotal *prometheus.CounterVec
	KeyRotationsTotal     prometheus.Counter
	CleanupDeletionsTotal *prometheus.CounterVec
	ActiveSessionsGauge   prometheus.Gauge
)

// InitCustomMetrics initializes and registers the application metrics.
// Call once at startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_logins_success_total",
		Help: "Total number of successful logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_logins_failure_total",
		Help: "Total number of failed logins.",
	})
	AccountLockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_account_lockouts_total",
		Help: "Total number of accounts locked after repeated failures.",
	})
	TokensIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_tokens_issued_total",
		Help: "Total number of token sets issued.",
	})
	TokensRefreshedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_tokens_refreshed_total",
		Help: "Total number of refresh token rotations.",
	})
	TokenExchangesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_token_exchanges_total",
		Help: "Total number of authorization code exchanges.",
	})
	MfaChallengesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_mfa_challenges_total",
		Help: "Total number of MFA challenges issued.",
	})
	MfaVerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_mfa_verifications_total",
		Help: "MFA verification attempts by result.",
	}, []string{"result"})
	KeyRotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_key_rotations_total",
		Help: "Total number of signing key rotations.",
	})
	CleanupDeletionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_cleanup_deletions_total",
		Help: "Documents deleted by the cleanup sweeps, by task.",
	}, []string{"task"})
	ActiveSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aether_active_sessions_gauge",
		Help: "Current number of active SSO sessions.",
	})

	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}
	collectors := []prometheus.Collector{
		LoginSuccessTotal, LoginFailureTotal, AccountLockoutsTotal,
		TokensIssuedTotal, TokensRefreshedTotal, TokenExchangesTotal,
		MfaChallengesTotal, MfaVerificationsTotal, KeyRotationsTotal,
		CleanupDeletionsTotal, ActiveSessionsGauge,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register Prometheus metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
