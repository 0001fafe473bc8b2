package bungie

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// BungieResponse is the envelope around every Bungie.net payload. Response
// is nil when the payload is absent or null.
type BungieResponse[T any] struct {
	ErrorCode       int    `json:"ErrorCode"`
	Message         string `json:"Message"`
	ErrorStatus     string `json:"ErrorStatus"`
	ThrottleSeconds int    `json:"ThrottleSeconds"`
	Response        *T     `json:"Response"`
}

type BungieError struct {
	ErrorCode       int    `json:"ErrorCode"`
	Message         string `json:"Message"`
	ErrorStatus     string `json:"ErrorStatus"`
	ThrottleSeconds int    `json:"ThrottleSeconds"`
}

func (b *BungieError) Error() string {
	return fmt.Sprintf("%s [%d]: %s", b.ErrorStatus, b.ErrorCode, b.Message)
}

type DestinyUserInfo struct {
	IconPath                    *string `json:"iconPath"`
	CrossSaveOverride           int     `json:"crossSaveOverride"`
	ApplicableMembershipTypes   []int   `json:"applicableMembershipTypes"`
	MembershipType              int     `json:"membershipType"`
	MembershipId                int64   `json:"membershipId,string"`
	DisplayName                 *string `json:"displayName"`
	BungieGlobalDisplayName     *string `json:"bungieGlobalDisplayName"`
	BungieGlobalDisplayNameCode *int    `json:"bungieGlobalDisplayNameCode"`
}

// Groups

type GroupResponse struct {
	Detail GroupV2 `json:"detail"`
}

type GroupV2 struct {
	GroupId     int64  `json:"groupId,string"`
	Name        string `json:"name"`
	GroupType   int    `json:"groupType"`
	MemberCount int    `json:"memberCount"`
	Motto       string `json:"motto"`
}

type GroupMember struct {
	MemberType             int             `json:"memberType"`
	IsOnline               bool            `json:"isOnline"`
	LastOnlineStatusChange int64           `json:"lastOnlineStatusChange,string"`
	GroupId                int64           `json:"groupId,string"`
	DestinyUserInfo        DestinyUserInfo `json:"destinyUserInfo"`
	JoinDate               time.Time       `json:"joinDate"`
}

type SearchResultOfGroupMember struct {
	Results      []GroupMember `json:"results"`
	TotalResults int           `json:"totalResults"`
	HasMore      bool          `json:"hasMore"`
}

// Profiles

type DestinyProfileResponse struct {
	Profile SingleComponentResponseOfDestinyProfileComponent `json:"profile"`
}

type SingleComponentResponseOfDestinyProfileComponent struct {
	Data    *DestinyProfileComponent `json:"data"`
	Privacy int                      `json:"privacy"`
}

type DestinyProfileComponent struct {
	UserInfo       DestinyUserInfo `json:"userInfo"`
	DateLastPlayed time.Time       `json:"dateLastPlayed"`
	CharacterIds   []string        `json:"characterIds"`
}

// Activity history

type DestinyActivityHistoryResults struct {
	Activities []DestinyHistoricalStatsPeriodGroup `json:"activities"`
}

type DestinyHistoricalStatsPeriodGroup struct {
	Period          string                         `json:"period"`
	ActivityDetails DestinyHistoricalStatsActivity `json:"activityDetails"`
}

type DestinyHistoricalStatsActivity struct {
	InstanceId           int64  `json:"instanceId,string"`
	Mode                 int    `json:"mode"`
	Modes                []int  `json:"modes"`
	MembershipType       int    `json:"membershipType"`
	DirectorActivityHash uint32 `json:"directorActivityHash"`
	IsPrivate            bool   `json:"isPrivate"`
}

// Post game carnage reports

type DestinyPostGameCarnageReport struct {
	ActivityDetails DestinyHistoricalStatsActivity      `json:"activityDetails"`
	Period          string                              `json:"period"`
	Entries         []DestinyPostGameCarnageReportEntry `json:"entries"`
}

// DestinyPostGameCarnageReportEntry keeps Player and its user info as
// pointers: deleted accounts show up with either one missing
type DestinyPostGameCarnageReportEntry struct {
	Player *DestinyPostGameCarnageReportPlayer `json:"player"`
}

type DestinyPostGameCarnageReportPlayer struct {
	DestinyUserInfo *DestinyPostGameCarnageReportUserInfo `json:"destinyUserInfo"`
}

// DestinyPostGameCarnageReportUserInfo holds the membership id undecoded.
// Deleted accounts come back with an empty or unquoted id, which must only
// invalidate their own entry rather than the whole report.
type DestinyPostGameCarnageReportUserInfo struct {
	MembershipId   json.RawMessage `json:"membershipId"`
	MembershipType int             `json:"membershipType"`
	DisplayName    *string         `json:"displayName"`
}

var ErrMissingMembershipId = errors.New("missing membership id")

// ParseMembershipId reads the id in the quoted form Bungie sends, or as a bare number
func (u *DestinyPostGameCarnageReportUserInfo) ParseMembershipId() (int64, error) {
	raw := bytes.TrimSpace(u.MembershipId)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrMissingMembershipId
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("membership id %s: %w", raw, err)
		}
		if text == "" {
			return 0, ErrMissingMembershipId
		}
	}

	membershipId, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("membership id %s: %w", raw, err)
	}
	if membershipId <= 0 {
		return 0, fmt.Errorf("membership id %d: %w", membershipId, ErrMissingMembershipId)
	}
	return membershipId, nil
}
