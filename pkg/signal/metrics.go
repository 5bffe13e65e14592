package signal

import "github.com/prometheus/client_golang/prometheus"

var (
	roomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "duet",
		Subsystem: "signal",
		Name:      "rooms_active",
		Help:      "Number of rooms currently alive.",
	})
	joinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duet",
		Subsystem: "signal",
		Name:      "joins_total",
		Help:      "Join attempts by result.",
	}, []string{"result"})
	offersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "duet",
		Subsystem: "signal",
		Name:      "offers_total",
		Help:      "Offers submitted.",
	})
	answersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "duet",
		Subsystem: "signal",
		Name:      "answers_total",
		Help:      "Answers accepted.",
	})
	candidatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duet",
		Subsystem: "signal",
		Name:      "ice_candidates_total",
		Help:      "ICE candidates relayed by side.",
	}, []string{"side"})
	chatMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "duet",
		Subsystem: "signal",
		Name:      "chat_messages_total",
		Help:      "Chat messages relayed.",
	})
)

func init() {
	prometheus.MustRegister(
		roomsActive,
		joinsTotal,
		offersTotal,
		answersTotal,
		candidatesTotal,
		chatMessagesTotal,
	)
}
