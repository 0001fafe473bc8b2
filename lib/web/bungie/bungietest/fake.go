// Package bungietest provides an in-memory stand-in for the Bungie API
// covering the endpoints the clan pipeline calls.
package bungietest

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"clangraph/lib/web/bungie"
)

// ErrUnavailable is the transport failure returned for ids listed in Fail*
var ErrUnavailable = errors.New("upstream unavailable")

// Fake answers from fixed fixtures. Maps are read-only once requests start.
type Fake struct {
	// clan name -> group id
	Groups map[string]int64
	// group id -> members, split into pages of PageSize
	Rosters  map[int64][]bungie.GroupMember
	PageSize int

	// membership id -> profile; absent ids answer DestinyAccountNotFound
	Profiles map[int64]bungie.DestinyProfileResponse
	// membership id -> the only membership type the profile answers to
	ProfileTypes map[int64]int
	// membership id -> privacy restriction on the profile itself
	PrivateProfiles map[int64]bool

	// character id -> activity history, newest first
	Histories map[int64][]bungie.DestinyHistoricalStatsPeriodGroup
	// character ids answering DestinyPrivacyRestriction
	PrivateHistories map[int64]bool
	// character ids answering success with a null Response
	EmptyHistories map[int64]bool

	// instance id -> PGCR entries
	Reports map[int64][]bungie.DestinyPostGameCarnageReportEntry

	// ids whose requests fail with a *bungie.DataSourceError
	FailGroups    map[int64]bool
	FailProfiles  map[int64]bool
	FailHistories map[int64]bool
	FailReports   map[int64]bool

	mu    sync.Mutex
	calls map[string]int
}

func New() *Fake {
	return &Fake{
		Groups:           map[string]int64{},
		Rosters:          map[int64][]bungie.GroupMember{},
		Profiles:         map[int64]bungie.DestinyProfileResponse{},
		ProfileTypes:     map[int64]int{},
		PrivateProfiles:  map[int64]bool{},
		Histories:        map[int64][]bungie.DestinyHistoricalStatsPeriodGroup{},
		PrivateHistories: map[int64]bool{},
		EmptyHistories:   map[int64]bool{},
		Reports:          map[int64][]bungie.DestinyPostGameCarnageReportEntry{},
		FailGroups:       map[int64]bool{},
		FailProfiles:     map[int64]bool{},
		FailHistories:    map[int64]bool{},
		FailReports:      map[int64]bool{},
		calls:            map[string]int{},
	}
}

// Calls returns how many times an endpoint was hit, e.g. Calls("history", characterId)
func (f *Fake) Calls(endpoint string, id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key(endpoint, id)]
}

func (f *Fake) record(endpoint string, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key(endpoint, id)]++
}

func key(endpoint string, id int64) string {
	return endpoint + ":" + strconv.FormatInt(id, 10)
}

func failure(endpoint string) error {
	return &bungie.DataSourceError{Endpoint: endpoint, Err: ErrUnavailable}
}

func success[T any](data *T) *bungie.BungieHttpResult[T] {
	return &bungie.BungieHttpResult[T]{
		Success:           true,
		Data:              data,
		BungieErrorCode:   bungie.Success,
		BungieErrorStatus: "Success",
		HttpStatusCode:    200,
	}
}

func failed[T any](code int, status string) *bungie.BungieHttpResult[T] {
	return &bungie.BungieHttpResult[T]{
		Success:           false,
		BungieErrorCode:   code,
		BungieErrorStatus: status,
		HttpStatusCode:    200,
	}
}

func (f *Fake) GetGroupByName(ctx context.Context, name string, groupType int) (*bungie.BungieHttpResult[bungie.GroupResponse], error) {
	f.record("group_name", 0)
	groupId, ok := f.Groups[name]
	if !ok {
		return failed[bungie.GroupResponse](bungie.GroupNotFound, "GroupNotFound"), nil
	}
	if f.FailGroups[groupId] {
		return nil, failure("GroupV2.GetGroupByName")
	}
	return success(&bungie.GroupResponse{Detail: bungie.GroupV2{GroupId: groupId, Name: name, GroupType: groupType}}), nil
}

func (f *Fake) GetMembersOfGroup(ctx context.Context, groupId int64, page int) (*bungie.BungieHttpResult[bungie.SearchResultOfGroupMember], error) {
	f.record("members", groupId)
	if f.FailGroups[groupId] {
		return nil, failure("GroupV2.GetMembersOfGroup")
	}
	members, ok := f.Rosters[groupId]
	if !ok {
		return failed[bungie.SearchResultOfGroupMember](bungie.GroupNotFound, "GroupNotFound"), nil
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	start := min((page-1)*pageSize, len(members))
	end := min(start+pageSize, len(members))
	return success(&bungie.SearchResultOfGroupMember{
		Results:      members[start:end],
		TotalResults: len(members),
		HasMore:      end < len(members),
	}), nil
}

func (f *Fake) GetProfile(ctx context.Context, membershipType int, membershipId int64, components []int) (*bungie.BungieHttpResult[bungie.DestinyProfileResponse], error) {
	f.record("profile", membershipId)
	if f.FailProfiles[membershipId] {
		return nil, failure("Destiny2.GetProfile")
	}
	if f.PrivateProfiles[membershipId] {
		return failed[bungie.DestinyProfileResponse](bungie.DestinyPrivacyRestriction, "DestinyPrivacyRestriction"), nil
	}
	if expected, ok := f.ProfileTypes[membershipId]; ok && expected != membershipType {
		return failed[bungie.DestinyProfileResponse](bungie.InvalidParameters, "InvalidParameters"), nil
	}
	profile, ok := f.Profiles[membershipId]
	if !ok {
		return failed[bungie.DestinyProfileResponse](bungie.DestinyAccountNotFound, "DestinyAccountNotFound"), nil
	}
	return success(&profile), nil
}

func (f *Fake) GetActivityHistoryPage(ctx context.Context, membershipType int, membershipId int64, characterId int64, count int, page int, mode int) (*bungie.BungieHttpResult[bungie.DestinyActivityHistoryResults], error) {
	f.record("history", characterId)
	if err := ctx.Err(); err != nil {
		return nil, &bungie.DataSourceError{Endpoint: "Destiny2.GetActivityHistory", Err: err}
	}
	if f.FailHistories[characterId] {
		return nil, failure("Destiny2.GetActivityHistory")
	}
	if f.PrivateHistories[characterId] {
		return failed[bungie.DestinyActivityHistoryResults](bungie.DestinyPrivacyRestriction, "DestinyPrivacyRestriction"), nil
	}
	if f.EmptyHistories[characterId] {
		return success[bungie.DestinyActivityHistoryResults](nil), nil
	}

	history := f.Histories[characterId]
	start := min(page*count, len(history))
	end := min(start+count, len(history))
	return success(&bungie.DestinyActivityHistoryResults{Activities: history[start:end]}), nil
}

func (f *Fake) GetPGCR(ctx context.Context, instanceId int64) (*bungie.BungieHttpResult[bungie.DestinyPostGameCarnageReport], error) {
	f.record("pgcr", instanceId)
	if f.FailReports[instanceId] {
		return nil, failure("Destiny2.GetPostGameCarnageReport")
	}
	entries, ok := f.Reports[instanceId]
	if !ok {
		return failed[bungie.DestinyPostGameCarnageReport](bungie.PGCRNotFound, "DestinyPGCRNotFound"), nil
	}
	return success(&bungie.DestinyPostGameCarnageReport{
		ActivityDetails: bungie.DestinyHistoricalStatsActivity{InstanceId: instanceId},
		Entries:         entries,
	}), nil
}

// Fixture helpers

// AddMember registers a clan member with a public profile owning characterIds
func (f *Fake) AddMember(groupId int64, membershipId int64, name string, characterIds ...int64) bungie.GroupMember {
	displayName := name
	member := bungie.GroupMember{
		GroupId: groupId,
		DestinyUserInfo: bungie.DestinyUserInfo{
			MembershipId:              membershipId,
			MembershipType:            bungie.MembershipTypeSteam,
			ApplicableMembershipTypes: []int{bungie.MembershipTypeSteam},
			DisplayName:               &displayName,
		},
		JoinDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.Rosters[groupId] = append(f.Rosters[groupId], member)
	f.Profiles[membershipId] = Profile(bungie.ComponentPrivacyPublic, characterIds...)
	return member
}

// Profile builds a profile response listing characterIds
func Profile(privacy int, characterIds ...int64) bungie.DestinyProfileResponse {
	ids := make([]string, len(characterIds))
	for i, id := range characterIds {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return bungie.DestinyProfileResponse{
		Profile: bungie.SingleComponentResponseOfDestinyProfileComponent{
			Privacy: privacy,
			Data:    &bungie.DestinyProfileComponent{CharacterIds: ids},
		},
	}
}

// Activity builds one activity history entry
func Activity(instanceId int64, period time.Time) bungie.DestinyHistoricalStatsPeriodGroup {
	return bungie.DestinyHistoricalStatsPeriodGroup{
		Period:          period.UTC().Format(time.RFC3339),
		ActivityDetails: bungie.DestinyHistoricalStatsActivity{InstanceId: instanceId},
	}
}

// Entry builds a well-formed PGCR entry for membershipId
func Entry(membershipId int64) bungie.DestinyPostGameCarnageReportEntry {
	return EntryWithRawId(strconv.Quote(strconv.FormatInt(membershipId, 10)))
}

// EntryWithRawId builds a PGCR entry whose membershipId is the given JSON text
func EntryWithRawId(raw string) bungie.DestinyPostGameCarnageReportEntry {
	return bungie.DestinyPostGameCarnageReportEntry{
		Player: &bungie.DestinyPostGameCarnageReportPlayer{
			DestinyUserInfo: &bungie.DestinyPostGameCarnageReportUserInfo{
				MembershipId:   json.RawMessage(raw),
				MembershipType: bungie.MembershipTypeSteam,
				DisplayName:    ptr("player-" + raw),
			},
		},
	}
}

// MalformedEntry builds a PGCR entry with no user info, as deleted accounts appear
func MalformedEntry() bungie.DestinyPostGameCarnageReportEntry {
	return bungie.DestinyPostGameCarnageReportEntry{
		Player: &bungie.DestinyPostGameCarnageReportPlayer{},
	}
}

func ptr[T any](v T) *T {
	return &v
}
