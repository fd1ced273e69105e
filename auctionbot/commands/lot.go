package commands

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kirillLeo1/Auction/auctionbot"
	"github.com/kirillLeo1/Auction/auctionbot/database/models"
	"github.com/kirillLeo1/Auction/auctionbot/handlers"
	"github.com/kirillLeo1/Auction/auctionbot/messenger"
)

const lotsPerPage = 8

var LotCommand = discord.SlashCommandCreate{
	Name:        "lot",
	Description: "Manage auction lots (operators only)",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "create",
			Description: "Create a draft lot",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "title",
					Description: "Lot title",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "price",
					Description: "Start price for auctions, sale price for fixed-price lots",
					Required:    true,
					MinValue:    intPtr(1),
				},
				discord.ApplicationCommandOptionString{
					Name:        "mode",
					Description: "How the lot is sold",
					Required:    true,
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "auction", Value: "auction"},
						{Name: "fixed price", Value: "sale"},
					},
				},
				discord.ApplicationCommandOptionString{
					Name:        "description",
					Description: "Lot description",
				},
				discord.ApplicationCommandOptionInt{
					Name:        "quantity",
					Description: "Identical units for sale (default 1)",
					MinValue:    intPtr(1),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "min_step",
					Description: "Minimum raise over the current price (auctions only)",
					MinValue:    intPtr(1),
				},
				discord.ApplicationCommandOptionAttachment{
					Name:        "photo",
					Description: "Lot photo",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "publish",
			Description: "Publish a draft lot to the sale channel",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "lot",
					Description: "Lot number",
					Required:    true,
					MinValue:    intPtr(1),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "publish-all",
			Description: "Publish every draft lot",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "finish",
			Description: "Close an active lot and start the winners cascade",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "lot",
					Description: "Lot number",
					Required:    true,
					MinValue:    intPtr(1),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "finish-all",
			Description: "Close every active lot",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "List lots by status",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "status",
					Description: "Which lots to show",
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "draft", Value: "draft"},
						{Name: "active", Value: "active"},
						{Name: "finished", Value: "finished"},
					},
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "search",
			Description: "Find lots by title",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "query",
					Description: "Part of the title",
					Required:    true,
				},
			},
		},
	},
}

type LotHandler struct {
	bot *auctionbot.Bot
}

func NewLotHandler(b *auctionbot.Bot) *LotHandler {
	return &LotHandler{bot: b}
}

func (h *LotHandler) Register(r handler.Router) {
	r.Route("/lot", func(r handler.Router) {
		r.Command("/create", handlers.WrapWithLogging("lot-create", h.HandleCreate))
		r.Command("/publish", handlers.WrapWithLogging("lot-publish", h.HandlePublish))
		r.Command("/publish-all", handlers.WrapWithLogging("lot-publish-all", h.HandlePublishAll))
		r.Command("/finish", handlers.WrapWithLogging("lot-finish", h.HandleFinish))
		r.Command("/finish-all", handlers.WrapWithLogging("lot-finish-all", h.HandleFinishAll))
		r.Command("/list", handlers.WrapWithLogging("lot-list", h.HandleList))
		r.Command("/search", handlers.WrapWithLogging("lot-search", h.HandleSearch))
	})
}

func (h *LotHandler) requireAdmin(event *handler.CommandEvent) bool {
	if h.bot.IsAdmin(event.User().ID) {
		return true
	}
	_ = event.CreateMessage(discord.MessageCreate{
		Content: "This command is for operators only.",
		Flags:   discord.MessageFlagEphemeral,
	})
	return false
}

func (h *LotHandler) HandleCreate(event *handler.CommandEvent) error {
	if !h.requireAdmin(event) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data := event.SlashCommandInteractionData()

	lot := &models.Lot{
		Title:       data.String("title"),
		Description: strings.TrimSpace(data.String("description")),
		StartPrice:  int64(data.Int("price")),
		Quantity:    1,
		Status:      models.LotStatusDraft,
		CreatedBy:   event.User().ID.String(),
	}
	lot.CurrentPrice = lot.StartPrice
	if quantity, ok := data.OptInt("quantity"); ok {
		lot.Quantity = quantity
	}
	if data.String("mode") == "auction" {
		lot.MinStep = h.bot.Cfg.Auction.DefaultMinStep
		if step, ok := data.OptInt("min_step"); ok {
			lot.MinStep = int64(step)
		}
	}

	var photos []*models.LotPhoto
	if attachment, ok := data.OptAttachment("photo"); ok {
		key, url, err := h.uploadPhoto(ctx, attachment)
		if err != nil {
			return event.CreateMessage(discord.MessageCreate{
				Content: fmt.Sprintf("Failed to store the photo: %v", err),
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		photos = append(photos, &models.LotPhoto{Key: key, URL: url})
	}

	if err := h.bot.LotRepository.Create(ctx, lot, photos); err != nil {
		return event.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Failed to create the lot: %v", err),
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	mode := "fixed price"
	if !lot.IsSale() {
		mode = fmt.Sprintf("auction, min raise %d", lot.MinStep)
	}
	return event.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("Draft **Lot #%d: %s** created (%s, %d %s, quantity %d). Publish it with `/lot publish`.",
			lot.PublicID, lot.Title, mode, lot.StartPrice, h.bot.Cfg.Auction.Currency, lot.Quantity),
		Flags: discord.MessageFlagEphemeral,
	})
}

func (h *LotHandler) uploadPhoto(ctx context.Context, attachment discord.Attachment) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("attachment download returned status %d", resp.StatusCode)
	}

	contentType := ""
	if attachment.ContentType != nil {
		contentType = *attachment.ContentType
	}
	return h.bot.PhotoStorage.Upload(ctx, 0, attachment.Filename, contentType, resp.Body)
}

func (h *LotHandler) HandlePublish(event *handler.CommandEvent) error {
	if !h.requireAdmin(event) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	publicID := int64(event.SlashCommandInteractionData().Int("lot"))
	lot, err := h.bot.LotRepository.GetByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	if lot == nil {
		return event.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Lot #%d does not exist.", publicID),
			Flags:   discord.MessageFlagEphemeral,
		})
	}
	if lot.Status != models.LotStatusDraft {
		return event.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Lot #%d is already %s.", publicID, lot.Status),
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	if err := h.publishLot(ctx, lot); err != nil {
		return event.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Failed to publish Lot #%d: %v", publicID, err),
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	return event.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("Lot #%d is live.", publicID),
		Flags:   discord.MessageFlagEphemeral,
	})
}

func (h *LotHandler) publishLot(ctx context.Context, lot *models.Lot) error {
	photos, err := h.bot.LotRepository.Photos(ctx, lot.ID)
	if err != nil {
		return err
	}
	urls := make([]string, 0, len(photos))
	for _, photo := range photos {
		urls = append(urls, photo.URL)
	}

	result := h.bot.Publisher.Publish(ctx, messenger.PublishRequest{Lot: lot, PhotoURLs: urls})
	if result.Err != nil {
		return result.Err
	}

	lot.Status = models.LotStatusActive
	lot.MessageID = result.MessageID
	return h.bot.LotRepository.Update(ctx, lot)
}

func (h *LotHandler) HandlePublishAll(event *handler.CommandEvent) error {
	if !h.requireAdmin(event) {
		return nil
	}

	if err := event.DeferCreateMessage(true); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	drafts, err := h.bot.LotRepository.ListByStatus(ctx, models.LotStatusDraft)
	if err != nil {
		return err
	}

	published, failed := 0, 0
	for _, lot := range drafts {
		if err := h.publishLot(ctx, lot); err != nil {
			failed++
			continue
		}
		published++
	}

	_, err = event.UpdateInteractionResponse(discord.MessageUpdate{
		Content: ptr(fmt.Sprintf("Published %d lots, %d failed.", published, failed)),
	})
	return err
}

func (h *LotHandler) HandleFinish(event *handler.CommandEvent) error {
	if !h.requireAdmin(event) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	publicID := int64(event.SlashCommandInteractionData().Int("lot"))
	lot, err := h.bot.LotRepository.GetByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	if lot == nil || lot.Status != models.LotStatusActive {
		return event.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Lot #%d is not active.", publicID),
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	if err := h.bot.Manager.StartCascade(ctx, lot.ID); err != nil {
		return event.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Failed to finish Lot #%d: %v", publicID, err),
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	finished, err := h.bot.LotRepository.GetByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	if finished != nil && finished.Status == models.LotStatusActive {
		return event.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Lot #%d had no bids and is relisted as a direct sale at %d %s.",
				publicID, finished.CurrentPrice, h.bot.Cfg.Auction.Currency),
			Flags: discord.MessageFlagEphemeral,
		})
	}
	return event.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("Lot #%d closed; winners have been notified.", publicID),
		Flags:   discord.MessageFlagEphemeral,
	})
}

func (h *LotHandler) HandleFinishAll(event *handler.CommandEvent) error {
	if !h.requireAdmin(event) {
		return nil
	}

	if err := event.DeferCreateMessage(true); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	active, err := h.bot.LotRepository.ListByStatus(ctx, models.LotStatusActive)
	if err != nil {
		return err
	}

	finished, failed := 0, 0
	for _, lot := range active {
		if err := h.bot.Manager.StartCascade(ctx, lot.ID); err != nil {
			failed++
			continue
		}
		finished++
	}

	_, err = event.UpdateInteractionResponse(discord.MessageUpdate{
		Content: ptr(fmt.Sprintf("Closed %d lots, %d failed.", finished, failed)),
	})
	return err
}

func (h *LotHandler) HandleList(event *handler.CommandEvent) error {
	if !h.requireAdmin(event) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status := models.LotStatusActive
	if value, ok := event.SlashCommandInteractionData().OptString("status"); ok {
		status = models.LotStatus(value)
	}

	lots, err := h.bot.LotRepository.ListByStatus(ctx, status)
	if err != nil {
		return err
	}
	if len(lots) == 0 {
		return event.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("No %s lots.", status),
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	return h.paginateLots(event, fmt.Sprintf("%s lots", cases.Title(language.English).String(string(status))), lots)
}

func (h *LotHandler) HandleSearch(event *handler.CommandEvent) error {
	if !h.requireAdmin(event) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	query := event.SlashCommandInteractionData().String("query")
	lots, err := h.bot.LotSearch.Search(ctx, query,
		models.LotStatusDraft, models.LotStatusActive, models.LotStatusFinished)
	if err != nil {
		return err
	}
	if len(lots) == 0 {
		return event.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Nothing matches `%s`.", query),
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	return h.paginateLots(event, fmt.Sprintf("Lots matching `%s`", query), lots)
}

func (h *LotHandler) paginateLots(event *handler.CommandEvent, title string, lots []*models.Lot) error {
	totalPages := int(math.Ceil(float64(len(lots)) / float64(lotsPerPage)))

	return h.bot.Paginator.Create(event.Respond, paginator.Pages{
		ID:      event.ID().String(),
		Creator: event.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			startIdx := page * lotsPerPage
			endIdx := min(startIdx+lotsPerPage, len(lots))

			var description strings.Builder
			for _, lot := range lots[startIdx:endIdx] {
				mode := "sale"
				if !lot.IsSale() {
					mode = "auction"
				}
				description.WriteString(fmt.Sprintf("**#%d** %s — %s, %d %s, qty %d (%s)\n",
					lot.PublicID, lot.Title, mode, lot.CurrentPrice, h.bot.Cfg.Auction.Currency, lot.Quantity, lot.Status))
			}

			embed.SetTitle(title).
				SetDescription(description.String()).
				SetColor(0x2b2d31)
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, false)
}

func ptr[T any](v T) *T {
	return &v
}
