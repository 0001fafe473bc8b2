package clan

import (
	"context"
	"fmt"
	"strconv"

	"clangraph/lib/utils/logging"
	"clangraph/lib/web/bungie"
)

var logger = logging.NewLogger("CLAN_SERVICE")

// Source is the subset of the Bungie client used to resolve a clan
type Source interface {
	GetGroupByName(ctx context.Context, name string, groupType int) (*bungie.BungieHttpResult[bungie.GroupResponse], error)
	GetMembersOfGroup(ctx context.Context, groupId int64, page int) (*bungie.BungieHttpResult[bungie.SearchResultOfGroupMember], error)
	GetProfile(ctx context.Context, membershipType int, membershipId int64, components []int) (*bungie.BungieHttpResult[bungie.DestinyProfileResponse], error)
}

// Resolve looks up the clan (by name unless groupId is set) and loads its
// roster. Any data source failure is returned as is.
func Resolve(ctx context.Context, src Source, name string, groupId int64) (*Clan, error) {
	if groupId == 0 {
		result, err := src.GetGroupByName(ctx, name, bungie.GroupTypeClan)
		if err != nil {
			return nil, err
		}
		if !result.Success {
			if result.BungieErrorCode == bungie.GroupNotFound {
				return nil, fmt.Errorf("%w: %q", ErrClanNotFound, name)
			}
			return nil, result.FormatError("GetGroupByName", name)
		}
		if result.Data == nil || result.Data.Detail.GroupId == 0 {
			return nil, fmt.Errorf("%w: %q", ErrClanNotFound, name)
		}
		groupId = result.Data.Detail.GroupId
		name = result.Data.Detail.Name
	}

	logger.Info("CLAN_RESOLVED", map[string]any{
		logging.CLAN_NAME: name,
		logging.GROUP_ID:  groupId,
	})

	clan := &Clan{
		GroupId: groupId,
		Name:    name,
		Members: map[int64]*Member{},
	}

	for page := 1; ; page++ {
		result, err := src.GetMembersOfGroup(ctx, groupId, page)
		if err != nil {
			return nil, err
		}
		if !result.Success {
			if result.BungieErrorCode == bungie.GroupNotFound {
				return nil, fmt.Errorf("%w: group %d", ErrClanNotFound, groupId)
			}
			return nil, result.FormatError("GetMembersOfGroup", strconv.FormatInt(groupId, 10))
		}
		if result.Data == nil {
			break
		}

		for _, entry := range result.Data.Results {
			member := memberFromEntry(entry)
			if member == nil {
				logger.Warn("ROSTER_ENTRY_WITHOUT_ID", nil, map[string]any{
					logging.GROUP_ID: groupId,
					logging.PAGE:     page,
				})
				continue
			}
			clan.Members[member.MembershipId] = member
		}

		if !result.Data.HasMore || len(result.Data.Results) == 0 {
			break
		}
	}

	logger.Info("ROSTER_LOADED", map[string]any{
		logging.GROUP_ID: groupId,
		logging.COUNT:    len(clan.Members),
	})
	return clan, nil
}

func memberFromEntry(entry bungie.GroupMember) *Member {
	info := entry.DestinyUserInfo
	if info.MembershipId == 0 {
		return nil
	}

	member := NewMember(info.MembershipId, info.MembershipType, displayName(info))
	member.ApplicableMembershipTypes = info.ApplicableMembershipTypes
	member.JoinDate = entry.JoinDate
	return member
}

func displayName(info bungie.DestinyUserInfo) string {
	if info.DisplayName != nil && *info.DisplayName != "" {
		return *info.DisplayName
	}
	if info.BungieGlobalDisplayName != nil && *info.BungieGlobalDisplayName != "" {
		return *info.BungieGlobalDisplayName
	}
	return strconv.FormatInt(info.MembershipId, 10)
}
