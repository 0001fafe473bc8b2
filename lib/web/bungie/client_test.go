package bungie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"clangraph/lib/utils/network"
	"clangraph/lib/utils/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *BungieClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		APIKey:                 "test-key",
		BaseURL:                server.URL,
		StatsBaseURL:           server.URL + "/stats",
		RequestsPerSecond:      1000,
		StatsRequestsPerSecond: 1000,
		Retry: &retry.RetryConfig{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			Multiplier:   1,
			ShouldRetry:  network.ShouldRetry,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGetMembersOfGroupDecodesEnvelope(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "/Platform/GroupV2/42/Members/", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("currentpage"))
		writeJSON(w, http.StatusOK, `{
			"ErrorCode": 1, "ErrorStatus": "Success",
			"Response": {"hasMore": false, "results": [
				{"joinDate": "2020-05-01T10:00:00Z",
				 "destinyUserInfo": {"membershipId": "4611686018400000001", "membershipType": 3, "displayName": "Ana"}}
			]}
		}`)
	})

	result, err := client.GetMembersOfGroup(context.Background(), 42, 2)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.Data)
	require.Len(t, result.Data.Results, 1)

	member := result.Data.Results[0]
	assert.Equal(t, int64(4611686018400000001), member.DestinyUserInfo.MembershipId)
	assert.Equal(t, "Ana", *member.DestinyUserInfo.DisplayName)
	assert.Equal(t, time.Date(2020, 5, 1, 10, 0, 0, 0, time.UTC), member.JoinDate)
}

func TestGetGroupByNameEscapesName(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Platform/GroupV2/Name/Box%20Canyon%20Guardians/1/", r.URL.EscapedPath())
		writeJSON(w, http.StatusOK, `{"ErrorCode": 1, "Response": {"detail": {"groupId": "881267", "name": "Box Canyon Guardians"}}}`)
	})

	result, err := client.GetGroupByName(context.Background(), "Box Canyon Guardians", GroupTypeClan)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, int64(881267), result.Data.Detail.GroupId)
}

func TestPrivacyRestrictionIsAResultNotAnError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ErrorCode": 1665, "ErrorStatus": "DestinyPrivacyRestriction", "Message": "private"}`)
	})

	result, err := client.GetActivityHistoryPage(context.Background(), 3, 1, 2, 50, 0, ModeNone)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.IsPrivacyRestricted())
	assert.Nil(t, result.Data)
}

func TestEmptyResponsePayloadIsSuccessWithoutData(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ErrorCode": 1, "ErrorStatus": "Success", "Response": null}`)
	})

	result, err := client.GetActivityHistoryPage(context.Background(), 3, 1, 2, 50, 0, ModeNone)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Nil(t, result.Data)
}

func TestCloudflarePageIsRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("<html>Attention Required</html>"))
			return
		}
		assert.Equal(t, "/stats/Platform/Destiny2/Stats/PostGameCarnageReport/99/", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"ErrorCode": 1, "Response": {"entries": [{"player": {"destinyUserInfo": {"membershipId": "7"}}}]}}`)
	})

	result, err := client.GetPGCR(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, result.Data.Entries, 1)
	membershipId, err := result.Data.Entries[0].Player.DestinyUserInfo.ParseMembershipId()
	require.NoError(t, err)
	assert.Equal(t, int64(7), membershipId)
}

func TestPGCRWithBlankMembershipIdStillDecodes(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ErrorCode": 1, "Response": {"entries": [
			{"player": {"destinyUserInfo": {"membershipId": "4611686018400000001", "membershipType": 3}}},
			{"player": {"destinyUserInfo": {"membershipId": "", "membershipType": 0}}},
			{"player": {"destinyUserInfo": {"membershipId": 4611686018400000002, "membershipType": 2}}}
		]}}`)
	})

	result, err := client.GetPGCR(context.Background(), 100)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Data.Entries, 3)

	first, err := result.Data.Entries[0].Player.DestinyUserInfo.ParseMembershipId()
	require.NoError(t, err)
	assert.Equal(t, int64(4611686018400000001), first)

	_, err = result.Data.Entries[1].Player.DestinyUserInfo.ParseMembershipId()
	assert.ErrorIs(t, err, ErrMissingMembershipId)

	third, err := result.Data.Entries[2].Player.DestinyUserInfo.ParseMembershipId()
	require.NoError(t, err)
	assert.Equal(t, int64(4611686018400000002), third)
}

func TestParseMembershipId(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    int64
		missing bool
		wantErr bool
	}{
		{name: "quoted", raw: `"4611686018400000001"`, want: 4611686018400000001},
		{name: "bare number", raw: `42`, want: 42},
		{name: "empty string", raw: `""`, missing: true},
		{name: "null", raw: `null`, missing: true},
		{name: "absent", raw: ``, missing: true},
		{name: "zero", raw: `"0"`, missing: true},
		{name: "not a number", raw: `"abc"`, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := DestinyPostGameCarnageReportUserInfo{MembershipId: json.RawMessage(tt.raw)}
			got, err := info.ParseMembershipId()
			switch {
			case tt.missing:
				assert.ErrorIs(t, err, ErrMissingMembershipId)
			case tt.wantErr:
				assert.Error(t, err)
				assert.NotErrorIs(t, err, ErrMissingMembershipId)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestThrottledEnvelopeIsRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusOK, `{"ErrorCode": 1672, "ErrorStatus": "DestinyThrottledByGameServer"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"ErrorCode": 1, "Response": {"activities": []}}`)
	})

	result, err := client.GetActivityHistoryPage(context.Background(), 3, 1, 2, 50, 0, ModeNone)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(3), calls.Load())
}

func TestThrottleSecondsDelaysRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusOK, `{"ErrorCode": 1672, "ErrorStatus": "DestinyThrottledByGameServer", "ThrottleSeconds": 1}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"ErrorCode": 1, "Response": {"activities": []}}`)
	})

	start := time.Now()
	result, err := client.GetActivityHistoryPage(context.Background(), 3, 1, 2, 50, 0, ModeNone)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestThrottleDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{name: "throttled", err: &BungieError{ErrorCode: DestinyThrottledByGameServer, ThrottleSeconds: 3}, want: 3 * time.Second},
		{name: "wrapped", err: fmt.Errorf("get: %w", &BungieError{ErrorCode: DestinyThrottledByGameServer, ThrottleSeconds: 2}), want: 2 * time.Second},
		{name: "unhandled exception", err: &BungieError{ErrorCode: UnhandledException, ThrottleSeconds: 5}, want: 0},
		{name: "transport", err: errors.New("connection reset"), want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, throttleDelay(tt.err))
		})
	}
}

func TestExhaustedRetriesReturnDataSourceError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
	})

	result, err := client.GetProfile(context.Background(), 3, 1, []int{ComponentProfiles})
	assert.Nil(t, result)

	var dsErr *DataSourceError
	require.ErrorAs(t, err, &dsErr)
	assert.Equal(t, "Destiny2.GetProfile", dsErr.Endpoint)

	var maxErr *retry.MaxRetriesExceededError
	assert.True(t, errors.As(err, &maxErr))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetProfileJoinsComponents(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Platform/Destiny2/3/Profile/11/", r.URL.Path)
		assert.Equal(t, "100,200", r.URL.Query().Get("components"))
		writeJSON(w, http.StatusOK, `{"ErrorCode": 1, "Response": {"profile": {"privacy": 1, "data": {"characterIds": ["21", "22"]}}}}`)
	})

	result, err := client.GetProfile(context.Background(), 3, 11, []int{ComponentProfiles, 200})
	require.NoError(t, err)
	assert.Equal(t, ComponentPrivacyPublic, result.Data.Profile.Privacy)
	assert.Equal(t, []string{"21", "22"}, result.Data.Profile.Data.CharacterIds)
}
