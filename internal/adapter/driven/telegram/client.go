// Package telegram implements the Platform port on top of gotd/td.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gotd/td/session"
	gotd "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Platform = (*Platform)(nil)
	_ driven.Conn     = (*conn)(nil)
)

// ErrNotABot is returned when the requested username resolves to something other than a bot.
var ErrNotABot = errors.New("username is not a bot")

// Platform opens one short-lived MTProto client per WithSession call.
type Platform struct {
	appID   int
	appHash string
	logger  *slog.Logger
	zap     *zap.Logger
}

// NewPlatform creates a Platform. protoLog, when non-nil, receives gotd's
// protocol-level debug logging.
func NewPlatform(appID int, appHash string, logger *slog.Logger, protoLog *zap.Logger) *Platform {
	if protoLog == nil {
		protoLog = zap.NewNop()
	}
	return &Platform{
		appID:   appID,
		appHash: appHash,
		logger:  logger,
		zap:     protoLog,
	}
}

// WithSession decodes a Telethon string session, connects through proxy and
// runs fn while the client is up. The client is torn down when fn returns.
func (p *Platform) WithSession(ctx context.Context, sess string, proxy *model.Proxy, fn func(ctx context.Context, conn driven.Conn) error) error {
	data, err := session.TelethonSession(sess)
	if err != nil {
		return fmt.Errorf("decode session: %w", err)
	}

	storage := &session.StorageMemory{}
	if err := (&session.Loader{Storage: storage}).Save(ctx, data); err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	dialer, err := dialerFor(proxy)
	if err != nil {
		return err
	}

	via := "direct"
	if proxy != nil {
		via = proxy.Addr()
	}
	p.logger.Debug("connecting to telegram", "via", via)

	client := gotd.NewClient(p.appID, p.appHash, gotd.Options{
		SessionStorage: storage,
		Resolver:       dcs.Plain(dcs.PlainOptions{Dial: dialer.DialContext}),
		NoUpdates:      true,
		Logger:         p.zap,
	})

	err = client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			return errors.New("session is not authorized")
		}

		api := client.API()
		return fn(ctx, &conn{
			client: client,
			api:    api,
			peers:  peers.Options{}.Build(api),
		})
	})

	return translate(err)
}

// translate maps FLOOD_WAIT RPC errors onto the port's FloodWaitError while
// keeping the original error in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return fmt.Errorf("%w: %w", &driven.FloodWaitError{Wait: wait}, err)
	}
	return err
}

type conn struct {
	client *gotd.Client
	api    *tg.Client
	peers  *peers.Manager
}

func (c *conn) Self(ctx context.Context) (model.Account, error) {
	self, err := c.client.Self(ctx)
	if err != nil {
		return model.Account{}, translate(err)
	}
	return model.Account{
		ID:        self.ID,
		FirstName: self.FirstName,
		LastName:  self.LastName,
	}, nil
}

func (c *conn) RequestAppWebView(ctx context.Context, bot string, params model.WebAppParams) (string, error) {
	peer, err := c.peers.ResolveDomain(ctx, bot)
	if err != nil {
		return "", fmt.Errorf("resolve @%s: %w", bot, translate(err))
	}

	user, ok := peer.(peers.User)
	if !ok {
		return "", fmt.Errorf("@%s: %w", bot, ErrNotABot)
	}
	raw := user.Raw()
	if !raw.Bot {
		return "", fmt.Errorf("@%s: %w", bot, ErrNotABot)
	}

	result, err := c.api.MessagesRequestAppWebView(ctx, &tg.MessagesRequestAppWebViewRequest{
		WriteAllowed: true,
		Peer:         &tg.InputPeerUser{UserID: raw.ID, AccessHash: raw.AccessHash},
		App: &tg.InputBotAppShortName{
			BotID:     &tg.InputUser{UserID: raw.ID, AccessHash: raw.AccessHash},
			ShortName: params.ShortName,
		},
		StartParam: params.StartParam,
		Platform:   params.Platform,
	})
	if err != nil {
		return "", translate(err)
	}

	return result.URL, nil
}
