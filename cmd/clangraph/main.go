package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"clangraph/lib/env"
	"clangraph/lib/monitoring"
	"clangraph/lib/services/activity"
	"clangraph/lib/services/clan"
	"clangraph/lib/services/coplay"
	"clangraph/lib/utils/logging"
	"clangraph/lib/web/bungie"

	"github.com/google/uuid"
)

var logger = logging.NewLogger("CLANGRAPH")

var (
	clanName = flag.String("clan", "Box Canyon Guardians", "name of the clan to map")
	clanId   = flag.Int64("clan-id", 0, "group id of the clan, skips the name lookup")
	depth    = flag.Int("depth", activity.DefaultSearchDepth, "most recent activities to read per character")
	days     = flag.Int("days", activity.DefaultRelevantDays, "ignore activities older than this many days")
	members  = flag.Int("members", 8, "number of members to collect concurrently")
	reqs     = flag.Int("reqs", 14, "number of concurrent Bungie API requests per member")
	apiKey   = flag.String("api-key", "", "Bungie API key (or BUNGIE_API_KEY, or the first argument)")
)

// Maps which members of a clan play together.
// Usage: ./bin/clangraph [--clan=<name>] [--depth=<n>] [--days=<n>] [api-key]
func main() {
	logging.ParseFlags()

	runId := uuid.NewString()
	flushSentry, recoverSentry := logger.InitSentry(runId)
	defer flushSentry()
	defer recoverSentry()

	fields := map[string]any{
		logging.RUN_ID:        runId,
		logging.CLAN_NAME:     *clanName,
		logging.GROUP_ID:      *clanId,
		logging.SEARCH_DEPTH:  *depth,
		logging.RELEVANT_DAYS: *days,
	}

	key := resolveAPIKey(*apiKey, flag.Args(), env.BungieAPIKey)
	if key == "" {
		logger.Fatal("MISSING_API_KEY", errors.New("no Bungie API key: pass it as an argument, with -api-key or BUNGIE_API_KEY"), fields)
	}
	if err := validateFlags(); err != nil {
		logger.Fatal("INVALID_FLAGS", err, fields)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitoring.RegisterMetrics()

	client := bungie.NewClient(bungie.Config{
		APIKey:                 key,
		BaseURL:                env.BungieURLBase,
		StatsBaseURL:           env.BungieStatsURLBase,
		RequestsPerSecond:      env.BungieRequestsPerS,
		StatsRequestsPerSecond: env.BungieStatsRequests,
	})

	logger.Info("RUN_STARTED", fields)
	result, err := coplay.Run(ctx, client, *clanName, *clanId, coplay.Options{
		SearchDepth:        *depth,
		RelevantDays:       *days,
		MemberConcurrency:  *members,
		RequestConcurrency: *reqs,
	})
	if err != nil {
		if errors.Is(err, clan.ErrClanNotFound) {
			logger.Fatal("CLAN_NOT_FOUND", err, fields)
		}
		logger.Fatal("CLAN_RESOLUTION_FAILED", err, fields)
	}
	if ctx.Err() != nil {
		logger.Warn("RUN_INTERRUPTED", ctx.Err(), fields)
	}

	if err := writeReport(os.Stdout, result); err != nil {
		logger.Error("REPORT_WRITE_FAILED", err, fields)
	}

	// The run context may already be cancelled, the push still gets a chance
	if err := monitoring.PushMetrics(context.WithoutCancel(ctx), "clangraph", map[string]string{"run_id": runId}); err != nil {
		logger.Warn("METRICS_PUSH_FAILED", err, fields)
	}

	logger.Info("RUN_COMPLETE", map[string]any{
		logging.RUN_ID:   runId,
		logging.TOTAL:    len(result.Clan.Members),
		logging.DURATION: result.Duration.String(),
	})
}

// resolveAPIKey prefers the flag, then the first positional argument, then the environment
func resolveAPIKey(flagValue string, args []string, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return envValue
}

func validateFlags() error {
	switch {
	case *clanName == "" && *clanId == 0:
		return errors.New("either -clan or -clan-id is required")
	case *clanId < 0:
		return errors.New("-clan-id must be positive")
	case *depth <= 0:
		return errors.New("-depth must be positive")
	case *days <= 0:
		return errors.New("-days must be positive")
	case *members <= 0:
		return errors.New("-members must be positive")
	case *reqs <= 0:
		return errors.New("-reqs must be positive")
	}
	return nil
}
