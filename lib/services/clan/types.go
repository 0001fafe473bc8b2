package clan

import (
	"cmp"
	"slices"
	"strconv"
	"time"
)

// Visibility of a member's activity history. Starts unknown and only moves
// on a profile fetch result or a privacy restriction during history fetches.
type Visibility int

const (
	VisibilityUnknown Visibility = iota
	VisibilityPublic
	VisibilityPrivate
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// Stage tracks how far a member has progressed through a run
type Stage int

const (
	StageNotStarted Stage = iota
	StageCharactersResolved
	StageActivitiesCollected
	StageAggregated
)

func (s Stage) String() string {
	switch s {
	case StageCharactersResolved:
		return "characters-resolved"
	case StageActivitiesCollected:
		return "activities-collected"
	case StageAggregated:
		return "aggregated"
	default:
		return "not-started"
	}
}

type Character struct {
	CharacterId int64
	Member      *Member
}

// Member is one clan member. MembershipId is the only key used to match
// participants returned by other endpoints.
type Member struct {
	MembershipId              int64
	MembershipType            int
	ApplicableMembershipTypes []int
	DisplayName               string
	JoinDate                  time.Time

	Visibility Visibility
	Stage      Stage

	Characters map[int64]*Character
	// instance id -> period, only activities inside the relevance window
	Activities map[int64]time.Time
	// participant ids across all window activities, duplicates kept
	RecentPlayers []int64
	// Incomplete is set when any fetch for this member failed outright, so an
	// empty window is not mistaken for no recent activity
	Incomplete bool
}

func NewMember(membershipId int64, membershipType int, displayName string) *Member {
	return &Member{
		MembershipId:   membershipId,
		MembershipType: membershipType,
		DisplayName:    displayName,
		Characters:     map[int64]*Character{},
		Activities:     map[int64]time.Time{},
	}
}

func (m *Member) IsPrivate() bool {
	return m.Visibility == VisibilityPrivate
}

// HistoryUnavailable reports whether the member's own history cannot be
// read, which is the case for private members and unresolved profiles
func (m *Member) HistoryUnavailable() bool {
	return m.Visibility != VisibilityPublic
}

// SortedCharacterIds returns character ids in ascending order
func (m *Member) SortedCharacterIds() []int64 {
	ids := make([]int64, 0, len(m.Characters))
	for id := range m.Characters {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// OldestActivity returns the earliest period in the window
func (m *Member) OldestActivity() (time.Time, bool) {
	var oldest time.Time
	for _, period := range m.Activities {
		if oldest.IsZero() || period.Before(oldest) {
			oldest = period
		}
	}
	return oldest, !oldest.IsZero()
}

func (m *Member) String() string {
	return m.DisplayName + " (" + strconv.FormatInt(m.MembershipId, 10) + ")"
}

type Clan struct {
	GroupId int64
	Name    string
	Members map[int64]*Member
}

func (c *Clan) Member(membershipId int64) (*Member, bool) {
	m, ok := c.Members[membershipId]
	return m, ok
}

// SortedMembers returns members ordered by membership id
func (c *Clan) SortedMembers() []*Member {
	members := make([]*Member, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, m)
	}
	slices.SortFunc(members, func(a, b *Member) int {
		return cmp.Compare(a.MembershipId, b.MembershipId)
	})
	return members
}
