// Package app assembles the moderation assistant: config, logging, journal,
// ledger exports, chat filtering, and the live action feed, under one
// supervisor.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"modwatch/internal/blocklist"
	"modwatch/internal/chat"
	"modwatch/internal/config"
	"modwatch/internal/eventbus"
	"modwatch/internal/filter"
	"modwatch/internal/helix"
	"modwatch/internal/ledger"
	"modwatch/internal/modlog"
	"modwatch/internal/pubsub"
	"modwatch/internal/runtime/supervisor"
	"modwatch/internal/storage"
	"modwatch/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	journal *modlog.Journal
	ledger  *ledger.Writer
	api     *helix.Client
	watcher *chat.Watcher
	issuer  *chat.Issuer
	cron    *cron.Cron

	// selfID is the authenticated account's user ID, resolved on Start.
	selfID string
}

// Option customizes construction. The zero set runs log-only enforcement
// with no chat transport.
type Option func(*options)

type options struct {
	sender chat.Sender
}

// WithSender wires a chat transport. Filter penalties then turn into real
// moderation commands, and bulk ban/unban runs become available.
func WithSender(s chat.Sender) Option {
	return func(o *options) { o.sender = s }
}

func New(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.Logging.Logx())
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("action archive enabled", logx.String("driver", sc.Driver))
	}

	api := helix.New(helix.Config{
		ClientID: cfg.Twitch.ClientID,
		Token:    cfg.Twitch.Token,
		BaseURL:  cfg.Twitch.APIBaseURL,
	}, log.With(logx.String("comp", "helix")))

	rules, err := filter.Load(cfg.Filters.Path, func(pattern string, err error) {
		log.Warn("skipping invalid filter rule", logx.String("pattern", pattern), logx.Err(err))
	})
	if err != nil {
		return nil, fmt.Errorf("load filter rules: %w", err)
	}

	var enforcer chat.Enforcer
	if o.sender != nil {
		enforcer = chat.SenderEnforcer{Sender: o.sender, Log: log.With(logx.String("comp", "enforcer"))}
	}
	watcher := chat.NewWatcher(rules, enforcer, log.With(logx.String("comp", "watcher")))

	var issuer *chat.Issuer
	if o.sender != nil {
		interval, err := config.ParseDurationOrDefault("chat.command_interval", cfg.Chat.CommandInterval, 350*time.Millisecond)
		if err != nil {
			return nil, err
		}
		issuer = chat.NewIssuer(o.sender, interval, log.With(logx.String("comp", "issuer")))
	}

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		journal: modlog.NewJournal(),
		ledger:  ledger.NewWriter(cfg.Export.Dir),
		api:     api,
		watcher: watcher,
		issuer:  issuer,
	}, nil
}

// Journal exposes the in-memory action history.
func (a *App) Journal() *modlog.Journal { return a.journal }

// Issuer returns the bulk command issuer, nil without a chat transport.
func (a *App) Issuer() *chat.Issuer { return a.issuer }

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	cfg := a.cfgm.Get()

	// Transactional hot reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := cron.ParseStandard(cfg.Export.Schedule); err != nil {
			return fmt.Errorf("export.schedule: %w", err)
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if err := a.resolveSelf(a.sup.Context(), cfg); err != nil {
		// The import/export paths still work without an identity; only
		// the live feed and blocklist sync need it.
		a.log.Warn("could not resolve own user id", logx.Err(err))
	}

	if cfg.PubSub.Enabled {
		if err := a.startListeners(cfg); err != nil {
			return err
		}
	}

	a.startCron(cfg)

	a.watchRun()
	a.reloadRun()

	a.log.Info("app started")
	return nil
}

func (a *App) resolveSelf(ctx context.Context, cfg *config.Config) error {
	rctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	users, err := a.api.UsersByLogin(rctx, []string{cfg.Twitch.Login})
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return fmt.Errorf("login %q not found", cfg.Twitch.Login)
	}
	a.selfID = users[0].ID
	return nil
}

// startListeners spins up one PubSub listener per watched channel.
func (a *App) startListeners(cfg *config.Config) error {
	if a.selfID == "" {
		return fmt.Errorf("pubsub enabled but own user id is unresolved")
	}
	rctx, cancel := context.WithTimeout(a.sup.Context(), 30*time.Second)
	ids := a.api.NamesToIDs(rctx, cfg.Chat.Channels)
	cancel()

	for _, ch := range cfg.Chat.Channels {
		id, ok := ids[ch]
		if !ok {
			a.log.Warn("channel not found, skipping live feed", logx.String("channel", ch))
			continue
		}
		l := pubsub.NewListener(pubsub.Config{
			URL:       cfg.PubSub.URL,
			AuthToken: cfg.Twitch.Token,
			UserID:    a.selfID,
			ChannelID: id,
		}, a.handleModAction, a.log.With(logx.String("comp", "pubsub"), logx.String("channel", ch)))

		a.sup.Go0("pubsub."+ch, l.Run)
	}
	return nil
}

// handleModAction is the live-feed entry point: journal, archive, publish.
func (a *App) handleModAction(m pubsub.ModerationAction) {
	rec := pubsub.ToRecord(m)
	a.journal.Prepend(rec)

	if a.store != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.store.AppendAction(sctx, storage.Entry{Source: storage.SourceLive, Record: rec}); err != nil {
			a.log.Warn("archive append failed", logx.Err(err))
		}
		cancel()
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.TypeModAction, Data: rec})
	a.log.Info("moderation action",
		logx.String("kind", string(rec.Kind)),
		logx.String("user", rec.UserName),
		logx.String("moderator", rec.Moderator),
	)
}

// HandleChatMessage feeds one live chat line through the filter watcher and
// onto the bus. Chat transports call this for every message they see.
func (a *App) HandleChatMessage(msg chat.Message) {
	a.watcher.Handle(msg)
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeChatMessage, Data: msg})
}

func (a *App) startCron(cfg *config.Config) {
	if !cfg.Export.AutoAll && !cfg.Export.AutoBans {
		return
	}
	a.cron = cron.New()
	_, err := a.cron.AddFunc(cfg.Export.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if cfg.Export.AutoAll {
			if path, n, err := a.ExportAll(ctx); err != nil {
				a.log.Warn("scheduled export failed", logx.Err(err))
			} else {
				a.log.Info("scheduled export", logx.String("path", path), logx.Int("appended", n))
			}
		}
		if cfg.Export.AutoBans {
			if path, n, err := a.ExportBans(ctx); err != nil {
				a.log.Warn("scheduled bans export failed", logx.Err(err))
			} else {
				a.log.Info("scheduled bans export", logx.String("path", path), logx.Int("appended", n))
			}
		}
	})
	if err != nil {
		a.log.Warn("invalid export schedule, auto export disabled", logx.Err(err))
		a.cron = nil
		return
	}
	a.cron.Start()
	a.log.Info("auto export scheduled", logx.String("schedule", cfg.Export.Schedule))
}

func (a *App) watchRun() {
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
}

// reloadRun applies hot config changes: logging always, filter rules when
// the file moved. Credentials, channels and storage need a restart.
func (a *App) reloadRun() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(newCfg.Logging.Logx())

				if newCfg.Filters.Path != last.Filters.Path {
					if err := a.ReloadFilters(newCfg.Filters.Path); err != nil {
						a.log.Warn("filter reload failed, keeping previous rules", logx.Err(err))
					}
				}
				if newCfg.Twitch != last.Twitch || !equalStrings(newCfg.Chat.Channels, last.Chat.Channels) {
					a.log.Warn("twitch/chat config changed; restart required for changes to take effect")
				}

				last = newCfg
				a.log.Info("config reloaded")
			}
		}
	})
}

// ReloadFilters re-reads the rules file and swaps the active set.
func (a *App) ReloadFilters(path string) error {
	rules, err := filter.Load(path, func(pattern string, err error) {
		a.log.Warn("skipping invalid filter rule", logx.String("pattern", pattern), logx.Err(err))
	})
	if err != nil {
		return err
	}
	a.watcher.SetRules(rules)
	a.log.Info("filter rules loaded", logx.Int("rules", len(rules)))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	if a.cron != nil {
		stopCtx := a.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}

	err := a.sup.Stop(ctx)

	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

// ImportActions parses a pasted dashboard export and folds it into the
// journal and archive. Returns how many actions were recognized.
func (a *App) ImportActions(ctx context.Context, text string) (int, error) {
	recs := modlog.ParseExport(text, func(parts []string, err error) {
		a.log.Debug("skipping unrecognized block", logx.Strings("parts", parts), logx.Err(err))
	})
	a.journal.Ingest(recs)

	if a.store != nil {
		for _, r := range recs {
			if err := a.store.AppendAction(ctx, storage.Entry{Source: storage.SourceImport, Record: r}); err != nil {
				return len(recs), err
			}
		}
	}
	a.log.Info("import complete", logx.Int("actions", len(recs)))
	return len(recs), nil
}

// ImportActionsFile is ImportActions over a file on disk.
func (a *App) ImportActionsFile(ctx context.Context, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return a.ImportActions(ctx, string(b))
}

// ExportAll writes the full ledger for today, resolving missing user names
// first so rows carry names where the platform knows them.
func (a *App) ExportAll(ctx context.Context) (string, int, error) {
	a.resolveNames(ctx)
	return a.ledger.ExportAll(a.journal.Snapshot())
}

// ExportBans writes the reconciled bans ledger for today.
func (a *App) ExportBans(ctx context.Context) (string, int, error) {
	a.resolveNames(ctx)
	return a.ledger.ExportBans(a.journal.Snapshot())
}

// resolveNames back-fills user names for journal entries that only carry an
// ID. Best effort; unresolved entries keep their empty name.
func (a *App) resolveNames(ctx context.Context) {
	ids := a.journal.MissingNameIDs()
	if len(ids) == 0 {
		return
	}
	names := a.api.IDsToNames(ctx, ids)
	if len(names) == 0 {
		return
	}
	n := a.journal.ApplyNames(names)
	a.log.Debug("resolved user names", logx.Int("resolved", n), logx.Int("wanted", len(ids)))
}

// SearchActions queries the durable archive. Returns ErrDisabled-free nil
// results when no archive is configured.
func (a *App) SearchActions(ctx context.Context, q storage.Query) ([]storage.Entry, error) {
	if a.store == nil {
		return nil, nil
	}
	return a.store.SearchActions(ctx, q)
}

// SyncBlocklist loads a shared bot list, diffs it against the account's
// current block list, and blocks the missing names. Returns how many were
// blocked.
func (a *App) SyncBlocklist(ctx context.Context, listPath string) (int, error) {
	if a.selfID == "" {
		if err := a.resolveSelf(ctx, a.cfgm.Get()); err != nil {
			return 0, err
		}
	}

	imported, err := blocklist.Load(listPath)
	if err != nil {
		return 0, err
	}
	blocked, err := a.api.BlockedUsers(ctx, a.selfID)
	if err != nil {
		return 0, err
	}
	current := make([]string, 0, len(blocked))
	for _, b := range blocked {
		current = append(current, b.UserLogin)
	}

	missing := blocklist.Diff(current, imported)
	if len(missing) == 0 {
		a.log.Info("blocklist already in sync", logx.Int("listed", len(imported)))
		return 0, nil
	}
	ids := a.api.NamesToIDs(ctx, missing)

	done := 0
	for _, name := range missing {
		id, ok := ids[name]
		if !ok {
			// Stale list entries (renamed or deleted accounts) are normal.
			a.log.Debug("blocklist name no longer resolves", logx.String("user", name))
			continue
		}
		if err := a.api.BlockUser(ctx, id); err != nil {
			if ctx.Err() != nil {
				return done, ctx.Err()
			}
			a.log.Warn("block failed, continuing", logx.String("user", name), logx.Err(err))
			continue
		}
		done++
	}
	a.log.Info("blocklist synced",
		logx.Int("listed", len(imported)),
		logx.Int("missing", len(missing)),
		logx.Int("blocked", done),
	)
	return done, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, true, nil
}
