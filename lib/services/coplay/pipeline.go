package coplay

import (
	"context"
	"sync/atomic"
	"time"

	"clangraph/lib/monitoring"
	"clangraph/lib/services/activity"
	"clangraph/lib/services/clan"
	"clangraph/lib/utils/batch"
	"clangraph/lib/utils/logging"
)

var logger = logging.NewLogger("COPLAY_SERVICE")

// Source is everything the pipeline needs from the Bungie API
type Source interface {
	clan.Source
	activity.Source
}

type Options struct {
	SearchDepth  int
	RelevantDays int
	// Members processed at once
	MemberConcurrency int
	// Requests in flight per member stage
	RequestConcurrency int
	// Overrides the collection time, mostly for tests
	Now time.Time
}

type Result struct {
	Clan      *clan.Clan
	Graph     *Graph
	StartedAt time.Time
	Duration  time.Duration
}

// Run resolves the clan, collects every member's recent activity rosters and
// only then counts relationships. Only clan resolution can fail the run;
// everything after it degrades per member.
func Run(ctx context.Context, src Source, clanName string, groupId int64, opts Options) (*Result, error) {
	startedAt := time.Now()
	windowOpts := activity.WindowOptions{
		SearchDepth:  opts.SearchDepth,
		RelevantDays: opts.RelevantDays,
		Now:          opts.Now,
		Concurrency:  opts.RequestConcurrency,
	}
	if windowOpts.Now.IsZero() {
		windowOpts.Now = startedAt
	}

	c, err := clan.Resolve(ctx, src, clanName, groupId)
	if err != nil {
		return nil, err
	}

	clan.EnumerateAll(ctx, src, c, opts.RequestConcurrency)

	members := c.SortedMembers()
	total := len(members)
	var processed atomic.Int64
	logger.Info("COLLECTION_STARTED", map[string]any{
		logging.TOTAL:         total,
		logging.SEARCH_DEPTH:  opts.SearchDepth,
		logging.RELEVANT_DAYS: opts.RelevantDays,
		logging.CONCURRENCY:   opts.MemberConcurrency,
	})

	batch.Run(ctx, members, opts.MemberConcurrency, func(ctx context.Context, member *clan.Member) (struct{}, error) {
		activity.CollectWindow(ctx, src, member, windowOpts)
		activity.CollectParticipants(ctx, src, member, opts.RequestConcurrency)
		monitoring.MembersCollected.WithLabelValues(outcome(member)).Inc()

		done := processed.Add(1)
		logger.Info("MEMBER_COLLECTED", map[string]any{
			logging.MEMBERSHIP_ID: member.MembershipId,
			logging.DISPLAY_NAME:  member.DisplayName,
			logging.VISIBILITY:    member.Visibility.String(),
			logging.ACTIVITIES:    len(member.Activities),
			logging.PLAYERS:       len(member.RecentPlayers),
			logging.PROCESSED:     done,
			logging.TOTAL:         total,
			logging.PERCENT:       percent(done, total),
		})
		return struct{}{}, nil
	})

	graph := NewGraph(c)
	aggregated := graph.AggregateAll()

	duration := time.Since(startedAt)
	logger.Info("AGGREGATION_COMPLETE", map[string]any{
		logging.COUNT:    aggregated,
		logging.TOTAL:    total,
		logging.DURATION: duration.Round(time.Millisecond).String(),
	})

	return &Result{
		Clan:      c,
		Graph:     graph,
		StartedAt: startedAt,
		Duration:  duration,
	}, nil
}

func outcome(member *clan.Member) string {
	if member.Incomplete {
		return "incomplete"
	}
	return member.Visibility.String()
}

func percent(done int64, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(int(float64(done)*1000/float64(total))) / 10
}
