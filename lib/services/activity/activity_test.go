package activity

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clangraph/lib/services/clan"
	"clangraph/lib/web/bungie"
	"clangraph/lib/web/bungie/bungietest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(days float64) time.Time {
	return now.Add(-time.Duration(days * float64(24*time.Hour)))
}

func publicMember(id int64, characterIds ...int64) *clan.Member {
	member := clan.NewMember(id, bungie.MembershipTypeSteam, "member")
	member.Visibility = clan.VisibilityPublic
	member.Stage = clan.StageCharactersResolved
	for _, characterId := range characterIds {
		member.Characters[characterId] = &clan.Character{CharacterId: characterId, Member: member}
	}
	return member
}

func TestInWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		period time.Time
		want   bool
	}{
		{"now", now, true},
		{"yesterday", daysAgo(1), true},
		{"exactly at cutoff", daysAgo(30), true},
		{"just past cutoff", daysAgo(30).Add(-time.Second), false},
		{"long ago", daysAgo(400), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InWindow(tt.period, now, 30))
		})
	}
}

func TestCollectWindowFiltersOldActivities(t *testing.T) {
	t.Parallel()

	fake := bungietest.New()
	fake.Histories[11] = []bungie.DestinyHistoricalStatsPeriodGroup{
		bungietest.Activity(100, daysAgo(1)),
		bungietest.Activity(101, daysAgo(10)),
		bungietest.Activity(102, daysAgo(45)),
	}
	member := publicMember(1, 11)

	window := CollectWindow(context.Background(), fake, member, WindowOptions{SearchDepth: 50, RelevantDays: 30, Now: now})

	assert.Len(t, window, 2)
	assert.Contains(t, window, int64(100))
	assert.Contains(t, window, int64(101))
	assert.NotContains(t, window, int64(102))
	assert.Equal(t, window, member.Activities)
	assert.False(t, member.Incomplete)
}

func TestCollectWindowRandomTimestamps(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	const relevantDays = 14

	fake := bungietest.New()
	var history []bungie.DestinyHistoricalStatsPeriodGroup
	for i := 0; i < 200; i++ {
		// strictly older as i grows, matching the API ordering
		history = append(history, bungietest.Activity(int64(1000+i), daysAgo(float64(i)*0.2+rng.Float64()*0.19)))
	}
	fake.Histories[11] = history
	member := publicMember(1, 11)

	window := CollectWindow(context.Background(), fake, member, WindowOptions{SearchDepth: 200, RelevantDays: relevantDays, Now: now})

	require.NotEmpty(t, window)
	for instanceId, period := range window {
		assert.LessOrEqual(t, now.Sub(period), relevantDays*24*time.Hour, "instance %d", instanceId)
	}
	for _, entry := range history {
		period, err := time.Parse(time.RFC3339, entry.Period)
		require.NoError(t, err)
		_, kept := window[entry.ActivityDetails.InstanceId]
		assert.Equal(t, InWindow(period, now, relevantDays), kept)
	}
}

func TestCollectWindowPagesPastApiLimit(t *testing.T) {
	t.Parallel()

	fake := bungietest.New()
	var history []bungie.DestinyHistoricalStatsPeriodGroup
	for i := 0; i < 600; i++ {
		history = append(history, bungietest.Activity(int64(i+1), now.Add(-time.Duration(i)*time.Minute)))
	}
	fake.Histories[11] = history
	member := publicMember(1, 11)

	window := CollectWindow(context.Background(), fake, member, WindowOptions{SearchDepth: 300, RelevantDays: 30, Now: now})

	assert.Len(t, window, 300)
	assert.Equal(t, 2, fake.Calls("history", 11))
}

func TestCollectWindowStopsPagingAtCutoff(t *testing.T) {
	t.Parallel()

	fake := bungietest.New()
	var history []bungie.DestinyHistoricalStatsPeriodGroup
	for i := 0; i < 600; i++ {
		history = append(history, bungietest.Activity(int64(i+1), daysAgo(float64(i))))
	}
	fake.Histories[11] = history
	member := publicMember(1, 11)

	window := CollectWindow(context.Background(), fake, member, WindowOptions{SearchDepth: 600, RelevantDays: 30, Now: now})

	assert.Len(t, window, 31)
	assert.Equal(t, 1, fake.Calls("history", 11))
}

func TestCollectWindowMergesCharacters(t *testing.T) {
	t.Parallel()

	fake := bungietest.New()
	fake.Histories[11] = []bungie.DestinyHistoricalStatsPeriodGroup{
		bungietest.Activity(100, daysAgo(2)),
		bungietest.Activity(101, daysAgo(3)),
	}
	fake.Histories[12] = []bungie.DestinyHistoricalStatsPeriodGroup{
		bungietest.Activity(100, daysAgo(1)),
		bungietest.Activity(102, daysAgo(4)),
	}
	member := publicMember(1, 12, 11)

	window := CollectWindow(context.Background(), fake, member, WindowOptions{Now: now})

	require.Len(t, window, 3)
	assert.Equal(t, daysAgo(1), window[100])
}

func TestCollectWindowPrivacyRestriction(t *testing.T) {
	t.Parallel()

	fake := bungietest.New()
	fake.Histories[11] = []bungie.DestinyHistoricalStatsPeriodGroup{bungietest.Activity(100, daysAgo(1))}
	fake.PrivateHistories[12] = true
	member := publicMember(1, 11, 12)

	window := CollectWindow(context.Background(), fake, member, WindowOptions{Now: now})

	assert.Empty(t, window)
	assert.Equal(t, clan.VisibilityPrivate, member.Visibility)
	assert.False(t, member.Incomplete)
}

func TestCollectWindowSkipsPrivateMember(t *testing.T) {
	t.Parallel()

	fake := bungietest.New()
	fake.Histories[11] = []bungie.DestinyHistoricalStatsPeriodGroup{bungietest.Activity(100, daysAgo(1))}
	member := publicMember(1, 11)
	member.Visibility = clan.VisibilityPrivate

	window := CollectWindow(context.Background(), fake, member, WindowOptions{Now: now})

	assert.Empty(t, window)
	assert.Zero(t, fake.Calls("history", 11))
}

func TestCollectWindowEmptyResponse(t *testing.T) {
	t.Parallel()

	fake := bungietest.New()
	fake.EmptyHistories[11] = true
	member := publicMember(1, 11)

	window := CollectWindow(context.Background(), fake, member, WindowOptions{Now: now})

	assert.Empty(t, window)
	assert.False(t, member.Incomplete)
	assert.Equal(t, clan.VisibilityPublic, member.Visibility)
}

func TestCollectWindowCharacterFailureMarksIncomplete(t *testing.T) {
	t.Parallel()

	fake := bungietest.New()
	fake.Histories[11] = []bungie.DestinyHistoricalStatsPeriodGroup{bungietest.Activity(100, daysAgo(1))}
	fake.FailHistories[12] = true
	member := publicMember(1, 11, 12)

	window := CollectWindow(context.Background(), fake, member, WindowOptions{Now: now})

	assert.Len(t, window, 1)
	assert.True(t, member.Incomplete)
	assert.Equal(t, clan.VisibilityPublic, member.Visibility)
}

func TestFetchParticipantsSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	fake := bungietest.New()
	fake.Reports[500] = []bungie.DestinyPostGameCarnageReportEntry{
		bungietest.Entry(1),
		bungietest.MalformedEntry(),
		{},
		bungietest.EntryWithRawId(`""`),
		bungietest.Entry(2),
	}

	roster, err := FetchParticipants(context.Background(), fake, 500)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, roster.Participants)
	require.Len(t, roster.Malformed, 3)
	assert.Equal(t, 1, roster.Malformed[0].EntryIndex)
	assert.Equal(t, 2, roster.Malformed[1].EntryIndex)
	assert.Equal(t, 3, roster.Malformed[2].EntryIndex)
	assert.ErrorIs(t, roster.Malformed[2], bungie.ErrMissingMembershipId)
}

func TestFetchParticipantsKeepsValidEntriesBesideBlankId(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"ErrorCode": 1, "ErrorStatus": "Success", "Response": {
			"activityDetails": {"instanceId": "700"},
			"entries": [
				{"player": {"destinyUserInfo": {"membershipId": "4611686018400000001", "membershipType": 3}}},
				{"player": {"destinyUserInfo": {"membershipId": "", "membershipType": 0}}},
				{"player": {"destinyUserInfo": {"membershipId": "4611686018400000002", "membershipType": 3}}}
			]
		}}`))
	}))
	t.Cleanup(server.Close)

	client := bungie.NewClient(bungie.Config{
		APIKey:                 "test-key",
		BaseURL:                server.URL,
		StatsBaseURL:           server.URL,
		RequestsPerSecond:      1000,
		StatsRequestsPerSecond: 1000,
	})

	roster, err := FetchParticipants(context.Background(), client, 700)
	require.NoError(t, err)
	assert.Equal(t, []int64{4611686018400000001, 4611686018400000002}, roster.Participants)
	require.Len(t, roster.Malformed, 1)
	assert.Equal(t, 1, roster.Malformed[0].EntryIndex)
	assert.ErrorIs(t, roster.Malformed[0], bungie.ErrMissingMembershipId)
}

func TestFetchParticipantsMissingReport(t *testing.T) {
	t.Parallel()

	_, err := FetchParticipants(context.Background(), bungietest.New(), 404)
	assert.Error(t, err)
}

func TestCollectParticipants(t *testing.T) {
	t.Parallel()

	fake := bungietest.New()
	fake.Reports[100] = []bungie.DestinyPostGameCarnageReportEntry{bungietest.Entry(1), bungietest.Entry(2)}
	fake.Reports[101] = []bungie.DestinyPostGameCarnageReportEntry{bungietest.Entry(1), bungietest.Entry(2), bungietest.Entry(3)}
	fake.FailReports[102] = true

	member := publicMember(1)
	member.Activities = map[int64]time.Time{100: daysAgo(1), 101: daysAgo(2), 102: daysAgo(3)}

	players := CollectParticipants(context.Background(), fake, member, 2)

	assert.Equal(t, []int64{1, 2, 1, 2, 3}, players)
	assert.Equal(t, players, member.RecentPlayers)
	assert.True(t, member.Incomplete)
	assert.Equal(t, clan.StageActivitiesCollected, member.Stage)
}
