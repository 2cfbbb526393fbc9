package chat

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"modwatch/pkg/logx"
)

// Issuer paces moderation commands so bulk runs (importing a thousand-name
// blocklist, say) never trip the platform's command rate limit. One command
// per interval, no bursts.
type Issuer struct {
	sender  Sender
	limiter *rate.Limiter
	log     logx.Logger
}

func NewIssuer(sender Sender, interval time.Duration, log logx.Logger) *Issuer {
	if interval <= 0 {
		interval = 350 * time.Millisecond
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Issuer{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		log:     log,
	}
}

// BanNames bans every name in order, pausing between commands. A failed name
// is logged and skipped; cancellation stops the run and returns how many
// commands were issued successfully.
func (i *Issuer) BanNames(ctx context.Context, channel string, names []string, reason string, progress func(done, total int)) (int, error) {
	return i.run(ctx, names, progress, func(name string) error {
		return i.sender.Ban(channel, name, reason)
	})
}

// UnbanNames is the inverse bulk run, same pacing and error policy.
func (i *Issuer) UnbanNames(ctx context.Context, channel string, names []string, progress func(done, total int)) (int, error) {
	return i.run(ctx, names, progress, func(name string) error {
		return i.sender.Unban(channel, name)
	})
}

func (i *Issuer) run(ctx context.Context, names []string, progress func(done, total int), cmd func(name string) error) (int, error) {
	done := 0
	for _, name := range names {
		if err := i.limiter.Wait(ctx); err != nil {
			return done, err
		}
		if err := cmd(name); err != nil {
			i.log.Warn("command failed, continuing", logx.String("user", name), logx.Err(err))
			continue
		}
		done++
		if progress != nil {
			progress(done, len(names))
		}
	}
	return done, nil
}
