package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"
	"golang.org/x/sync/errgroup"

	"github.com/kirillLeo1/Auction/auctionbot"
	"github.com/kirillLeo1/Auction/auctionbot/auction"
	"github.com/kirillLeo1/Auction/auctionbot/clock"
	"github.com/kirillLeo1/Auction/auctionbot/commands"
	"github.com/kirillLeo1/Auction/auctionbot/database"
	"github.com/kirillLeo1/Auction/auctionbot/database/repositories"
	"github.com/kirillLeo1/Auction/auctionbot/logger"
	"github.com/kirillLeo1/Auction/auctionbot/messenger"
	"github.com/kirillLeo1/Auction/auctionbot/payments"
	"github.com/kirillLeo1/Auction/auctionbot/services"
	"github.com/kirillLeo1/Auction/auctionbot/web"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting auction bot",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := auctionbot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()))
		os.Exit(-1)
	}
	slog.Info("Database schema initialized successfully")

	b := auctionbot.New(*cfg, version, commit)
	b.DB = db

	b.LotRepository = repositories.NewLotRepository(db.BunDB())
	b.BidRepository = repositories.NewBidRepository(db.BunDB())
	b.OfferRepository = repositories.NewOfferRepository(db.BunDB())
	b.UserRepository = repositories.NewUserRepository(db.BunDB())

	photoStorage, err := services.NewPhotoStorage(
		cfg.Spaces.Key,
		cfg.Spaces.Secret,
		cfg.Spaces.Region,
		cfg.Spaces.Bucket,
		cfg.Spaces.Root,
	)
	if err != nil {
		slog.Error("Failed to initialize photo storage", slog.Any("error", err))
		os.Exit(-1)
	}
	b.PhotoStorage = photoStorage
	b.LotSearch = services.NewLotSearch(b.LotRepository)

	paymentsClient, err := payments.NewClient(cfg.Payments)
	if err != nil {
		slog.Error("Failed to initialize payment gateway client", slog.Any("error", err))
		os.Exit(-1)
	}
	b.Payments = paymentsClient

	b.Messenger = messenger.New(cfg.Bot.ChannelID, cfg.Bot.AdminIDs, cfg.Auction.Currency)
	limiter := messenger.NewRateLimiter(cfg.Auction.PublishDelay(), 1)
	defer limiter.Close()
	b.Publisher = messenger.NewPublisher(b.Messenger, limiter)

	b.Manager = auction.NewManager(
		b.LotRepository,
		b.BidRepository,
		b.OfferRepository,
		b.Messenger,
		b.Payments,
		clock.NewSystem(),
		auction.Config{
			HoldDuration:     cfg.Auction.HoldDuration(),
			ReminderLeadTime: cfg.Auction.ReminderLeadTime(),
			Currency:         cfg.Auction.Currency,
		},
	)
	b.Sweeper = auction.NewSweeper(b.Manager, cfg.Auction.SweepInterval())

	h := handler.New()
	commands.NewLotHandler(b).Register(h)
	commands.NewBidHandler(b).Register(h)
	commands.NewOfferHandler(b).Register(h)

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)),
		)
		os.Exit(-1)
	}
	b.Messenger.SetClient(b.Client)

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = b.Client.OpenGateway(ctx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	b.Sweeper.Start()
	defer b.Sweeper.Shutdown()

	webhookHandler := web.NewWebhookHandler(b.Manager, b.Payments,
		cfg.Auction.Currency, cfg.Payments.CurrencyCode)
	server := web.NewServer(cfg.HTTP.Addr, webhookHandler)

	var group errgroup.Group
	group.Go(func() error {
		slog.Info("HTTP server listening", slog.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", slog.Any("error", err))
	}
	if err := group.Wait(); err != nil {
		slog.Error("HTTP server exited with error", slog.Any("error", err))
	}
}
