package auctionbot

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"
	"github.com/disgoorg/snowflake/v2"

	"github.com/kirillLeo1/Auction/auctionbot/auction"
	"github.com/kirillLeo1/Auction/auctionbot/database"
	"github.com/kirillLeo1/Auction/auctionbot/database/repositories"
	"github.com/kirillLeo1/Auction/auctionbot/messenger"
	"github.com/kirillLeo1/Auction/auctionbot/payments"
	"github.com/kirillLeo1/Auction/auctionbot/services"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string

	DB              *database.DB
	LotRepository   repositories.LotRepository
	BidRepository   repositories.BidRepository
	OfferRepository repositories.OfferRepository
	UserRepository  repositories.UserRepository

	Manager      *auction.Manager
	Sweeper      *auction.Sweeper
	Messenger    *messenger.Discord
	Publisher    *messenger.Publisher
	Payments     *payments.Client
	PhotoStorage *services.PhotoStorage
	LotSearch    *services.LotSearch
}

// IsAdmin reports whether the user is one of the configured operators.
func (b *Bot) IsAdmin(userID snowflake.ID) bool {
	for _, adminID := range b.Cfg.Bot.AdminIDs {
		if adminID == userID {
			return true
		}
	}
	return false
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("Auction bot is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithWatchingActivity("the auction floor"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}
