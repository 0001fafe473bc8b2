package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BungieRequestDuration tracks every Bungie API call, in milliseconds
var BungieRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bungie_request_duration_ms",
		Help:    "Latency of Bungie API requests including retries",
		Buckets: []float64{10, 20, 50, 100, 150, 200, 250, 300, 500, 750, 1000, 1500, 2000, 5000},
	},
	[]string{"endpoint", "status"},
)

var PrivacyRestrictions = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "clangraph_privacy_restrictions_total",
		Help: "Members flipped to private by a DestinyPrivacyRestriction response",
	},
)

var MalformedParticipants = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "clangraph_malformed_participants_total",
		Help: "PGCR entries skipped because they carried no membership id",
	},
)

var MembersCollected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "clangraph_members_collected_total",
		Help: "Members whose activity window finished collecting, by outcome",
	},
	[]string{"status"}, // status: "public", "private", "unknown", "incomplete"
)

var ActivitiesInWindow = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "clangraph_member_window_activities",
		Help:    "Activities kept in a member's window after the recency filter",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 150, 250, 500},
	},
)

var collectors = []prometheus.Collector{
	BungieRequestDuration,
	PrivacyRestrictions,
	MalformedParticipants,
	MembersCollected,
	ActivitiesInWindow,
}
