package clan

import (
	"context"
	"strconv"

	"clangraph/lib/utils/batch"
	"clangraph/lib/utils/logging"
	"clangraph/lib/web/bungie"
)

var profileComponents = []int{bungie.ComponentProfiles}

// EnumerateCharacters loads the member's profile, settles its visibility and
// builds its character set. It never fails: a member whose profile cannot be
// loaded keeps an empty character set, unknown visibility and is marked
// Incomplete.
func EnumerateCharacters(ctx context.Context, src Source, member *Member) {
	defer func() { member.Stage = StageCharactersResolved }()

	result, err := fetchProfile(ctx, src, member)
	if err != nil {
		member.Incomplete = true
		logger.Warn("PROFILE_FETCH_FAILED", err, map[string]any{
			logging.MEMBERSHIP_ID:   member.MembershipId,
			logging.MEMBERSHIP_TYPE: member.MembershipType,
		})
		return
	}

	if result.IsPrivacyRestricted() {
		member.Visibility = VisibilityPrivate
		return
	}
	if !result.Success || result.Data == nil || result.Data.Profile.Data == nil {
		member.Incomplete = true
		logger.Warn("PROFILE_UNAVAILABLE", nil, map[string]any{
			logging.MEMBERSHIP_ID:     member.MembershipId,
			logging.BUNGIE_ERROR_CODE: result.BungieErrorCode,
			logging.ERROR_STATUS:      result.BungieErrorStatus,
		})
		return
	}

	profile := result.Data.Profile
	if profile.Privacy == bungie.ComponentPrivacyPrivate {
		member.Visibility = VisibilityPrivate
	} else {
		member.Visibility = VisibilityPublic
	}

	for _, raw := range profile.Data.CharacterIds {
		characterId, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logger.Warn("INVALID_CHARACTER_ID", err, map[string]any{
				logging.MEMBERSHIP_ID: member.MembershipId,
				logging.CHARACTER_ID:  raw,
			})
			continue
		}
		member.Characters[characterId] = &Character{CharacterId: characterId, Member: member}
	}

	logger.Debug("CHARACTERS_RESOLVED", map[string]any{
		logging.MEMBERSHIP_ID: member.MembershipId,
		logging.VISIBILITY:    member.Visibility.String(),
		logging.CHARACTERS:    len(member.Characters),
	})
}

// fetchProfile tries the member's stored membership type first, then the
// other types the account applies to (every viable type when the roster did
// not list any) while the API keeps rejecting the type
func fetchProfile(ctx context.Context, src Source, member *Member) (*bungie.BungieHttpResult[bungie.DestinyProfileResponse], error) {
	result, err := src.GetProfile(ctx, member.MembershipType, member.MembershipId, profileComponents)
	if err != nil || result.BungieErrorCode != bungie.InvalidParameters {
		return result, err
	}

	candidates := member.ApplicableMembershipTypes
	if len(candidates) == 0 {
		candidates = bungie.AllViableMembershipTypes
	}
	for _, membershipType := range candidates {
		if membershipType == member.MembershipType {
			continue
		}
		result, err = src.GetProfile(ctx, membershipType, member.MembershipId, profileComponents)
		if err != nil {
			return nil, err
		}
		if result.BungieErrorCode != bungie.InvalidParameters {
			if result.Success {
				member.MembershipType = membershipType
			}
			return result, nil
		}
	}
	return result, nil
}

// EnumerateAll resolves every member's characters in one concurrent batch
func EnumerateAll(ctx context.Context, src Source, clan *Clan, concurrency int) {
	members := clan.SortedMembers()
	batch.Run(ctx, members, concurrency, func(ctx context.Context, member *Member) (struct{}, error) {
		EnumerateCharacters(ctx, src, member)
		return struct{}{}, nil
	})

	private, unknown := 0, 0
	for _, member := range members {
		switch member.Visibility {
		case VisibilityPrivate:
			private++
		case VisibilityUnknown:
			unknown++
		}
	}
	logger.Info("CHARACTERS_ENUMERATED", map[string]any{
		logging.TOTAL:  len(members),
		"private":     private,
		"unknown":     unknown,
	})
}
