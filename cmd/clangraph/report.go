package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"clangraph/lib/services/clan"
	"clangraph/lib/services/coplay"
)

const timestampFormat = "2006-01-02T15:04:05Z"

// writeReport prints every member's clan participation, in membership id order
func writeReport(w io.Writer, result *coplay.Result) error {
	members := result.Clan.SortedMembers()
	for _, member := range members {
		if err := writeMember(w, member, result.Graph.Ranked(member.MembershipId)); err != nil {
			return err
		}
	}

	perMember := time.Duration(0)
	if len(members) > 0 {
		perMember = result.Duration / time.Duration(len(members))
	}
	_, err := fmt.Fprintf(w, "\n%d members of %s in %s (%s per member)\n",
		len(members), result.Clan.Name, result.Duration.Round(time.Millisecond), perMember.Round(time.Millisecond))
	return err
}

func writeMember(w io.Writer, member *clan.Member, relationships []coplay.Relationship) error {
	fmt.Fprintf(w, "\nclan participation for %s (%d)\n", member.DisplayName, member.MembershipId)
	fmt.Fprintf(w, "Joined: %s\n", member.JoinDate.UTC().Format(timestampFormat))

	switch member.Visibility {
	case clan.VisibilityPrivate:
		fmt.Fprintln(w, "PROFILE IS PRIVATE (counts are inferred from clanmates' activities)")
	case clan.VisibilityUnknown:
		fmt.Fprintln(w, "PROFILE UNKNOWN (counts are inferred from clanmates' activities)")
	}
	if member.Incomplete {
		fmt.Fprintln(w, "INCOMPLETE (some requests failed, counts may be low)")
	}

	if oldest, ok := member.OldestActivity(); ok {
		fmt.Fprintf(w, "Oldest Activity: %s\n", oldest.UTC().Format(timestampFormat))
	} else {
		fmt.Fprintln(w, "Oldest Activity: No Activities Present")
	}

	if len(relationships) == 0 {
		_, err := fmt.Fprintln(w, "  no recent clanmates")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, relationship := range relationships {
		note := ""
		if relationship.Inferred > 0 {
			note = fmt.Sprintf("(%d inferred)", relationship.Inferred)
		}
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", relationship.DisplayName, relationship.TimesPlayed, note)
	}
	return tw.Flush()
}
