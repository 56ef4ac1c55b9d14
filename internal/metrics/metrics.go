package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TimerExpirations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_timer_expirations_total",
			Help: "Timer expiry events handled, by timer kind",
		},
		[]string{"kind"},
	)
	TimerLockWins = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "game_timer_lock_wins_total",
			Help: "Expiry handler lock acquisitions won by this node",
		},
	)
	TimerLockLosses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "game_timer_lock_losses_total",
			Help: "Expiry handler lock acquisitions lost to another node",
		},
	)
	Broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_broadcasts_total",
			Help: "Messages published to room/user topics, by event type",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(TimerExpirations, TimerLockWins, TimerLockLosses, Broadcasts)
}
