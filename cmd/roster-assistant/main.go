// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Roster-assistant is the conversational team-management daemon. It
// connects to the Matrix homeserver, long-polls /sync, and feeds every
// message from a bound room through the routing pipeline: conversation
// classification, identity resolution, command matching, permission
// evaluation, handler execution. Replies are threaded under the
// triggering message, with a goldmark HTML rendering alongside the
// plain-text fallback. Every routing decision is appended to the CBOR
// audit log.
//
// On startup:
//  1. Loads and validates the YAML config (teams, rooms, store, intent).
//  2. Opens the SQLite team store and the audit log.
//  3. Authenticates to the homeserver (stored token or password login).
//  4. Builds the catalog, handlers, and dispatcher.
//  5. Enters the /sync loop; a background sweep removes stale pending
//     registrations.
//
// SIGINT/SIGTERM drain the loop and close the store and audit log.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/roster-foundation/roster/lib/audit"
	"github.com/roster-foundation/roster/lib/authorize"
	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/clock"
	"github.com/roster-foundation/roster/lib/commands"
	"github.com/roster-foundation/roster/lib/config"
	"github.com/roster-foundation/roster/lib/dispatch"
	"github.com/roster-foundation/roster/lib/identity"
	"github.com/roster-foundation/roster/lib/intent"
	"github.com/roster-foundation/roster/lib/llm"
	"github.com/roster-foundation/roster/lib/ref"
	"github.com/roster-foundation/roster/lib/secret"
	"github.com/roster-foundation/roster/lib/teamstore"
	"github.com/roster-foundation/roster/lib/version"
	"github.com/roster-foundation/roster/messaging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		logLevel    string
		showVersion bool
	)

	flags := pflag.NewFlagSet("roster-assistant", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to roster.yaml (overrides ROSTER_CONFIG)")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if showVersion {
		fmt.Printf("roster-assistant %s\n", version.Info())
		return nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipelineTimeout, pendingTTL, cacheTTL, sweepInterval := cfg.Durations()

	store, err := teamstore.Open(teamstore.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Logger:   logger.With("component", "teamstore"),
	})
	if err != nil {
		return fmt.Errorf("opening team store: %w", err)
	}
	defer store.Close()

	auditLog, err := audit.Open(cfg.Audit.Path, logger.With("component", "audit"))
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer auditLog.Close()

	session, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	commandCatalog, err := catalog.New(commands.Definitions()...)
	if err != nil {
		return fmt.Errorf("building catalog: %w", err)
	}

	rooms, teamRooms, err := buildRoomTable(cfg)
	if err != nil {
		return err
	}

	resolver, err := identity.NewResolver(identity.ResolverConfig{
		Store:    store,
		CacheTTL: cacheTTL,
		Logger:   logger.With("component", "identity"),
	})
	if err != nil {
		return fmt.Errorf("building resolver: %w", err)
	}

	intents, redactor, err := buildClassifier(cfg, commandCatalog, logger)
	if err != nil {
		return err
	}

	handlers, err := commands.Handlers(commands.Deps{
		Store:      store,
		Catalog:    commandCatalog,
		Announcer:  &announcer{session: session, teamRooms: teamRooms, logger: logger},
		PendingTTL: pendingTTL,
		Logger:     logger.With("component", "commands"),
	})
	if err != nil {
		return fmt.Errorf("building handlers: %w", err)
	}

	dispatcherConfig := dispatch.Config{
		Catalog:  commandCatalog,
		Rooms:    rooms,
		Resolver: resolver,
		Handlers: handlers,
		Policy: authorize.Policy{
			PendingStaffCommands: cfg.Policy.PendingStaffCommands,
		},
		Auditor:  auditLog,
		Timeout:  pipelineTimeout,
		Logger:   logger.With("component", "dispatch"),
	}
	if intents != nil {
		dispatcherConfig.Intents = intents
		dispatcherConfig.Redactor = redactor
	}
	dispatcher, err := dispatch.New(dispatcherConfig)
	if err != nil {
		return fmt.Errorf("building dispatcher: %w", err)
	}

	assistant := &assistant{
		session:    session,
		dispatcher: dispatcher,
		rooms:      rooms,
		store:      store,
		teams:      cfg.Teams,
		pendingTTL: pendingTTL,
		clock:      clock.Real(),
		logger:     logger,
	}

	go assistant.sweepLoop(ctx, sweepInterval)

	logger.Info("roster assistant running",
		"user_id", session.UserID(),
		"teams", len(cfg.Teams),
		"intent_provider", cfg.Intent.Provider,
	)
	return assistant.syncLoop(ctx)
}

// connect authenticates to the homeserver with the configured method.
// Token auth wins when both are configured.
func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*messaging.Session, error) {
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Homeserver.URL,
		Logger:        logger.With("component", "messaging"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	if cfg.Homeserver.TokenFile != "" {
		token, err := secret.ReadFromPath(cfg.Homeserver.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("reading access token: %w", err)
		}
		defer token.Close()
		userID, err := ref.ParseUserID(cfg.Homeserver.UserID)
		if err != nil {
			return nil, fmt.Errorf("homeserver.user_id: %w", err)
		}
		session, err := client.SessionFromToken(userID, token.String())
		if err != nil {
			return nil, err
		}
		// A stale token should fail startup, not the first dispatch.
		if _, err := session.WhoAmI(ctx); err != nil {
			session.Close()
			return nil, fmt.Errorf("validating stored token: %w", err)
		}
		return session, nil
	}

	password, err := secret.ReadFromPath(cfg.Homeserver.PasswordFile)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	defer password.Close()
	return client.Login(ctx, cfg.Homeserver.Username, password)
}

// buildRoomTable converts the per-team config into the dispatch room
// table plus a team → team-room index for the announcer.
func buildRoomTable(cfg *config.Config) (*dispatch.RoomTable, map[ref.TeamID]ref.RoomID, error) {
	bindings := make(map[ref.RoomID]dispatch.Binding)
	teamRooms := make(map[ref.TeamID]ref.RoomID)
	for _, team := range cfg.Teams {
		teamID, err := ref.ParseTeamID(team.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("team %q: %w", team.ID, err)
		}
		teamRoom, err := ref.ParseRoomID(team.TeamRoom)
		if err != nil {
			return nil, nil, fmt.Errorf("team %q team_room: %w", team.ID, err)
		}
		staffRoom, err := ref.ParseRoomID(team.StaffRoom)
		if err != nil {
			return nil, nil, fmt.Errorf("team %q staff_room: %w", team.ID, err)
		}
		bindings[teamRoom] = dispatch.Binding{Team: teamID, Class: catalog.ClassTeam}
		bindings[staffRoom] = dispatch.Binding{Team: teamID, Class: catalog.ClassStaff}
		teamRooms[teamID] = teamRoom
	}
	rooms, err := dispatch.NewRoomTable(bindings)
	if err != nil {
		return nil, nil, err
	}
	return rooms, teamRooms, nil
}

// buildClassifier constructs the free-text intent classifier and the
// redactor that keys its prompt digests, or nils when the provider is
// unconfigured (slash commands only).
func buildClassifier(cfg *config.Config, commandCatalog *catalog.Catalog, logger *slog.Logger) (*intent.Classifier, *identity.Redactor, error) {
	if cfg.Intent.Provider == "" {
		return nil, nil, nil
	}

	apiKey, err := secret.ReadFromPath(cfg.Intent.APIKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("reading intent API key: %w", err)
	}

	redactionKey, err := secret.ReadFromPath(cfg.Intent.RedactionKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("reading redaction key: %w", err)
	}
	redactor, err := identity.NewRedactor(redactionKey)
	redactionKey.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("building redactor: %w", err)
	}

	var provider llm.Provider
	switch cfg.Intent.Provider {
	case "anthropic":
		provider = llm.NewAnthropic(http.DefaultClient, cfg.Intent.BaseURL, apiKey)
	case "openai":
		provider = llm.NewOpenAI(http.DefaultClient, cfg.Intent.BaseURL, apiKey)
	default:
		return nil, nil, fmt.Errorf("unknown intent provider %q", cfg.Intent.Provider)
	}

	classifier, err := intent.New(intent.Config{
		Provider:        provider,
		Model:           cfg.Intent.Model,
		ConfidenceFloor: cfg.Intent.ConfidenceFloor,
		MaxCandidates:   cfg.Intent.MaxCandidates,
		Timeout:         cfg.IntentTimeout(),
		Logger:          logger.With("component", "intent"),
	}, commandCatalog)
	if err != nil {
		return nil, nil, fmt.Errorf("building classifier: %w", err)
	}
	return classifier, redactor, nil
}
