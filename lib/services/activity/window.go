package activity

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"sync/atomic"
	"time"

	"clangraph/lib/monitoring"
	"clangraph/lib/services/clan"
	"clangraph/lib/utils/batch"
	"clangraph/lib/utils/logging"
	"clangraph/lib/web/bungie"
)

var logger = logging.NewLogger("ACTIVITY_SERVICE")

const (
	DefaultSearchDepth  = 50
	DefaultRelevantDays = 30
)

// Source is the subset of the Bungie client used to collect activities
type Source interface {
	GetActivityHistoryPage(ctx context.Context, membershipType int, membershipId int64, characterId int64, count int, page int, mode int) (*bungie.BungieHttpResult[bungie.DestinyActivityHistoryResults], error)
	GetPGCR(ctx context.Context, instanceId int64) (*bungie.BungieHttpResult[bungie.DestinyPostGameCarnageReport], error)
}

type WindowOptions struct {
	// Most recent activities requested per character
	SearchDepth int
	// Activities older than this many days are dropped
	RelevantDays int
	// Collection time the recency filter is measured against
	Now time.Time
	// Concurrent requests per member, <= 0 for unbounded
	Concurrency int
}

func (o WindowOptions) withDefaults() WindowOptions {
	if o.SearchDepth <= 0 {
		o.SearchDepth = DefaultSearchDepth
	}
	if o.RelevantDays <= 0 {
		o.RelevantDays = DefaultRelevantDays
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// InWindow reports whether an activity at period survives the recency filter
func InWindow(period time.Time, now time.Time, relevantDays int) bool {
	return now.Sub(period) <= time.Duration(relevantDays)*24*time.Hour
}

// CollectWindow fetches the recent activities of every character the member
// owns and stores the merged window on the member. A privacy restriction on
// any character makes the member private with an empty window. A character
// whose history could not be fetched contributes nothing and marks the
// member Incomplete.
func CollectWindow(ctx context.Context, src Source, member *clan.Member, opts WindowOptions) map[int64]time.Time {
	opts = opts.withDefaults()
	member.Activities = map[int64]time.Time{}
	if member.IsPrivate() {
		return member.Activities
	}

	var restricted atomic.Bool
	characterIds := member.SortedCharacterIds()
	results := batch.Run(ctx, characterIds, opts.Concurrency, func(ctx context.Context, characterId int64) (map[int64]time.Time, error) {
		return collectCharacter(ctx, src, member, characterId, opts, &restricted)
	})

	if restricted.Load() {
		member.Visibility = clan.VisibilityPrivate
		monitoring.PrivacyRestrictions.Inc()
		logger.Info("MEMBER_HISTORY_PRIVATE", map[string]any{
			logging.MEMBERSHIP_ID: member.MembershipId,
		})
		return member.Activities
	}

	// later characters win on collision
	for i, result := range results {
		if result.Err != nil {
			member.Incomplete = true
			logger.Warn("CHARACTER_HISTORY_FAILED", result.Err, map[string]any{
				logging.MEMBERSHIP_ID: member.MembershipId,
				logging.CHARACTER_ID:  characterIds[i],
			})
			continue
		}
		maps.Copy(member.Activities, result.Value)
	}

	monitoring.ActivitiesInWindow.Observe(float64(len(member.Activities)))
	logger.Debug("ACTIVITY_WINDOW_COLLECTED", map[string]any{
		logging.MEMBERSHIP_ID: member.MembershipId,
		logging.CHARACTERS:    len(characterIds),
		logging.ACTIVITIES:    len(member.Activities),
	})
	return member.Activities
}

func collectCharacter(ctx context.Context, src Source, member *clan.Member, characterId int64, opts WindowOptions, restricted *atomic.Bool) (map[int64]time.Time, error) {
	window := map[int64]time.Time{}
	pageSize := min(opts.SearchDepth, bungie.MaxActivityHistoryPageSize)

	for page, fetched := 0, 0; fetched < opts.SearchDepth; page++ {
		if restricted.Load() {
			return nil, nil
		}

		result, err := src.GetActivityHistoryPage(ctx, member.MembershipType, member.MembershipId, characterId, pageSize, page, bungie.ModeNone)
		if err != nil {
			return nil, err
		}
		if result.IsPrivacyRestricted() {
			restricted.Store(true)
			return nil, nil
		}
		if !result.Success {
			return nil, result.FormatError("GetActivityHistory", strconv.FormatInt(characterId, 10))
		}
		// Bungie answers an empty success for characters with no recent history
		if result.Data == nil || len(result.Data.Activities) == 0 {
			break
		}

		activities := result.Data.Activities
		if remaining := opts.SearchDepth - fetched; len(activities) > remaining {
			activities = activities[:remaining]
		}
		fetched += len(activities)

		reachedCutoff := false
		for _, entry := range activities {
			period, err := time.Parse(time.RFC3339, entry.Period)
			if err != nil {
				logger.Warn("INVALID_ACTIVITY_PERIOD", fmt.Errorf("parse period %q: %w", entry.Period, err), map[string]any{
					logging.CHARACTER_ID: characterId,
					logging.INSTANCE_ID:  entry.ActivityDetails.InstanceId,
				})
				continue
			}
			if !InWindow(period, opts.Now, opts.RelevantDays) {
				reachedCutoff = true
				continue
			}
			window[entry.ActivityDetails.InstanceId] = period
		}

		// history is newest first, so nothing past the cutoff can be in the window
		if reachedCutoff || len(result.Data.Activities) < pageSize {
			break
		}
	}

	return window, nil
}
