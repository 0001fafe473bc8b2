package activity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"clangraph/lib/monitoring"
	"clangraph/lib/services/clan"
	"clangraph/lib/utils/batch"
	"clangraph/lib/utils/logging"
	"clangraph/lib/web/bungie"
)

var errMissingUserInfo = errors.New("missing destinyUserInfo")

// MalformedParticipantError describes a PGCR entry without a usable
// membership id, which is how deleted accounts show up
type MalformedParticipantError struct {
	InstanceId int64
	EntryIndex int
	Err        error
}

func (e *MalformedParticipantError) Error() string {
	return fmt.Sprintf("pgcr %d: entry %d: %s", e.InstanceId, e.EntryIndex, e.Err)
}

func (e *MalformedParticipantError) Unwrap() error {
	return e.Err
}

// Roster is the participant list of one activity
type Roster struct {
	InstanceId   int64
	Participants []int64
	Malformed    []*MalformedParticipantError
}

// FetchParticipants loads the PGCR for one activity and extracts every
// participant's membership id. Malformed entries are skipped and reported
// on the roster, never returned as an error.
func FetchParticipants(ctx context.Context, src Source, instanceId int64) (*Roster, error) {
	result, err := src.GetPGCR(ctx, instanceId)
	if err != nil {
		return nil, err
	}
	if !result.Success || result.Data == nil {
		return nil, result.FormatError("GetPGCR", strconv.FormatInt(instanceId, 10))
	}

	roster := &Roster{
		InstanceId:   instanceId,
		Participants: make([]int64, 0, len(result.Data.Entries)),
	}
	for i, entry := range result.Data.Entries {
		membershipId, err := participantId(entry)
		if err != nil {
			malformed := &MalformedParticipantError{InstanceId: instanceId, EntryIndex: i, Err: err}
			roster.Malformed = append(roster.Malformed, malformed)
			monitoring.MalformedParticipants.Inc()
			logger.Warn("MALFORMED_PARTICIPANT", malformed, map[string]any{
				logging.INSTANCE_ID: instanceId,
				logging.ENTRY_INDEX: i,
			})
			continue
		}
		roster.Participants = append(roster.Participants, membershipId)
	}
	return roster, nil
}

func participantId(entry bungie.DestinyPostGameCarnageReportEntry) (int64, error) {
	if entry.Player == nil || entry.Player.DestinyUserInfo == nil {
		return 0, errMissingUserInfo
	}
	return entry.Player.DestinyUserInfo.ParseMembershipId()
}

// CollectParticipants fetches the roster of every activity in the member's
// window and flattens them into RecentPlayers. Duplicates are kept: each one
// is another shared activity. A roster that cannot be fetched contributes
// nothing and marks the member Incomplete.
func CollectParticipants(ctx context.Context, src Source, member *clan.Member, concurrency int) []int64 {
	defer func() { member.Stage = clan.StageActivitiesCollected }()

	instanceIds := make([]int64, 0, len(member.Activities))
	for instanceId := range member.Activities {
		instanceIds = append(instanceIds, instanceId)
	}
	slices.Sort(instanceIds)

	results := batch.Run(ctx, instanceIds, concurrency, func(ctx context.Context, instanceId int64) (*Roster, error) {
		return FetchParticipants(ctx, src, instanceId)
	})

	member.RecentPlayers = []int64{}
	for i, result := range results {
		if result.Err != nil {
			member.Incomplete = true
			logger.Warn("ACTIVITY_ROSTER_FAILED", result.Err, map[string]any{
				logging.MEMBERSHIP_ID: member.MembershipId,
				logging.INSTANCE_ID:   instanceIds[i],
			})
			continue
		}
		member.RecentPlayers = append(member.RecentPlayers, result.Value.Participants...)
	}

	logger.Debug("ACTIVITY_ROSTERS_COLLECTED", map[string]any{
		logging.MEMBERSHIP_ID: member.MembershipId,
		logging.ACTIVITIES:    len(instanceIds),
		logging.PLAYERS:       len(member.RecentPlayers),
	})
	return member.RecentPlayers
}
