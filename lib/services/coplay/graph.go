package coplay

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"clangraph/lib/services/clan"
	"clangraph/lib/utils/logging"
)

var (
	ErrAlreadyAggregated = errors.New("member already aggregated")
	ErrNotCollected      = errors.New("member activities not collected")
)

// Relationship is how often a member played with one clanmate
type Relationship struct {
	MembershipId int64
	DisplayName  string
	TimesPlayed  int
	// Inferred is the share of TimesPlayed recorded from the clanmate's
	// public rosters because this member's own history is unavailable
	Inferred int
}

// Graph accumulates relationships for a whole clan. Aggregate must only be
// called from a single goroutine once every member's fetching is finished:
// counting for one member also writes into its private clanmates' maps.
type Graph struct {
	clan          *clan.Clan
	relationships map[int64]map[int64]*Relationship
}

func NewGraph(c *clan.Clan) *Graph {
	relationships := make(map[int64]map[int64]*Relationship, len(c.Members))
	for id := range c.Members {
		relationships[id] = map[int64]*Relationship{}
	}
	return &Graph{clan: c, relationships: relationships}
}

// Aggregate counts the member's recent players against the clan roster. A
// member is counted exactly once per run.
func (g *Graph) Aggregate(member *clan.Member) error {
	switch member.Stage {
	case clan.StageAggregated:
		return fmt.Errorf("%w: %d", ErrAlreadyAggregated, member.MembershipId)
	case clan.StageActivitiesCollected:
	default:
		return fmt.Errorf("%w: %d is %s", ErrNotCollected, member.MembershipId, member.Stage)
	}

	for _, playerId := range member.RecentPlayers {
		if playerId == member.MembershipId {
			continue
		}
		clanmate, ok := g.clan.Member(playerId)
		if !ok {
			continue
		}

		g.increment(member.MembershipId, clanmate, false)
		if clanmate.HistoryUnavailable() {
			g.increment(clanmate.MembershipId, member, true)
		}
	}

	member.Stage = clan.StageAggregated
	return nil
}

func (g *Graph) increment(ownerId int64, other *clan.Member, inferred bool) {
	owned, ok := g.relationships[ownerId]
	if !ok {
		owned = map[int64]*Relationship{}
		g.relationships[ownerId] = owned
	}
	relationship, ok := owned[other.MembershipId]
	if !ok {
		relationship = &Relationship{MembershipId: other.MembershipId, DisplayName: other.DisplayName}
		owned[other.MembershipId] = relationship
	}
	relationship.TimesPlayed++
	if inferred {
		relationship.Inferred++
	}
}

// AggregateAll counts every member in membership id order. Members that are
// not ready or already counted are skipped with a warning.
func (g *Graph) AggregateAll() int {
	aggregated := 0
	for _, member := range g.clan.SortedMembers() {
		if err := g.Aggregate(member); err != nil {
			logger.Warn("AGGREGATION_SKIPPED", err, map[string]any{
				logging.MEMBERSHIP_ID: member.MembershipId,
			})
			continue
		}
		aggregated++
	}
	return aggregated
}

// Relationships returns a copy of the member's relationship map
func (g *Graph) Relationships(membershipId int64) map[int64]Relationship {
	out := make(map[int64]Relationship, len(g.relationships[membershipId]))
	for id, relationship := range g.relationships[membershipId] {
		out[id] = *relationship
	}
	return out
}

// Ranked returns the member's relationships, most played first
func (g *Graph) Ranked(membershipId int64) []Relationship {
	relationships := g.Relationships(membershipId)
	ranked := make([]Relationship, 0, len(relationships))
	for _, relationship := range relationships {
		ranked = append(ranked, relationship)
	}
	slices.SortFunc(ranked, func(a, b Relationship) int {
		if c := cmp.Compare(b.TimesPlayed, a.TimesPlayed); c != 0 {
			return c
		}
		if c := cmp.Compare(a.DisplayName, b.DisplayName); c != 0 {
			return c
		}
		return cmp.Compare(a.MembershipId, b.MembershipId)
	})
	return ranked
}
