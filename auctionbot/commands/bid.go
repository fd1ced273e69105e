package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/kirillLeo1/Auction/auctionbot"
	"github.com/kirillLeo1/Auction/auctionbot/auction"
	"github.com/kirillLeo1/Auction/auctionbot/database/models"
	"github.com/kirillLeo1/Auction/auctionbot/handlers"
)

var BidCommand = discord.SlashCommandCreate{
	Name:        "bid",
	Description: "Place a bid on an auction lot",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionInt{
			Name:        "lot",
			Description: "Lot number",
			Required:    true,
			MinValue:    intPtr(1),
		},
		discord.ApplicationCommandOptionInt{
			Name:        "amount",
			Description: "Your bid",
			Required:    true,
			MinValue:    intPtr(1),
		},
	},
}

type BidHandler struct {
	bot *auctionbot.Bot
}

func NewBidHandler(b *auctionbot.Bot) *BidHandler {
	return &BidHandler{bot: b}
}

func (h *BidHandler) Register(r handler.Router) {
	r.Command("/bid", handlers.WrapWithLogging("bid", h.HandleBid))
	r.Component("/lot/bid/{public_id}", h.HandleBidButton)
	r.Modal("/lot/bid-modal/{public_id}", handlers.WrapModalWithLogging("bid-modal", h.HandleBidModal))
	r.Component("/lot/buy/{public_id}", handlers.WrapComponentWithLogging("buy", h.HandleBuyButton))
}

func (h *BidHandler) HandleBid(event *handler.CommandEvent) error {
	data := event.SlashCommandInteractionData()
	return h.placeBid(event.User().ID.String(), event.User().Username,
		int64(data.Int("lot")), int64(data.Int("amount")),
		func(content string) error {
			return event.CreateMessage(discord.MessageCreate{
				Content: content,
				Flags:   discord.MessageFlagEphemeral,
			})
		})
}

// HandleBidButton opens the bid amount modal from the listing button.
func (h *BidHandler) HandleBidButton(event *handler.ComponentEvent) error {
	publicID := event.Vars["public_id"]
	return event.Modal(discord.ModalCreate{
		CustomID: fmt.Sprintf("/lot/bid-modal/%s", publicID),
		Title:    fmt.Sprintf("Bid on Lot #%s", publicID),
		Components: []discord.ContainerComponent{
			discord.NewActionRow(
				discord.NewTextInput("amount", discord.TextInputStyleShort, "Your bid").
					WithRequired(true).
					WithPlaceholder(fmt.Sprintf("Amount in %s", h.bot.Cfg.Auction.Currency)),
			),
		},
	})
}

func (h *BidHandler) HandleBidModal(event *handler.ModalEvent) error {
	publicID, err := strconv.ParseInt(event.Vars["public_id"], 10, 64)
	if err != nil {
		return err
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(event.Data.Text("amount")), 10, 64)
	if err != nil || amount <= 0 {
		return event.CreateMessage(discord.MessageCreate{
			Content: "Enter the bid as a whole number.",
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	return h.placeBid(event.User().ID.String(), event.User().Username, publicID, amount,
		func(content string) error {
			return event.CreateMessage(discord.MessageCreate{
				Content: content,
				Flags:   discord.MessageFlagEphemeral,
			})
		})
}

func (h *BidHandler) placeBid(userID, username string, publicID, amount int64, reply func(string) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := h.bot.UserRepository.Upsert(ctx, &models.User{DiscordID: userID, Username: username}); err != nil {
		return err
	}

	result, err := h.bot.Manager.PlaceBid(ctx, publicID, userID, username, amount)
	if err != nil {
		return reply(bidErrorMessage(err, h.bot.Cfg.Auction.Currency))
	}

	return reply(fmt.Sprintf("Your bid of **%d %s** on **Lot #%d** is in the lead! Next raise starts at %d %s.",
		amount, h.bot.Cfg.Auction.Currency, result.Lot.PublicID, result.MinAllowed, h.bot.Cfg.Auction.Currency))
}

// HandleBuyButton claims one unit of a fixed-price lot.
func (h *BidHandler) HandleBuyButton(event *handler.ComponentEvent) error {
	publicID, err := strconv.ParseInt(event.Vars["public_id"], 10, 64)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	userID := event.User().ID.String()
	if err := h.bot.UserRepository.Upsert(ctx, &models.User{DiscordID: userID, Username: event.User().Username}); err != nil {
		return err
	}

	offer, err := h.bot.Manager.Buy(ctx, publicID, userID)
	if err != nil {
		return event.CreateMessage(discord.MessageCreate{
			Content: buyErrorMessage(err),
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	content := fmt.Sprintf("**Lot #%d** is reserved for you at **%d %s**. Check your DMs for the payment link.",
		publicID, offer.Price, h.bot.Cfg.Auction.Currency)
	if offer.InvoiceURL != "" {
		content += "\n" + offer.InvoiceURL
	}
	return event.CreateMessage(discord.MessageCreate{
		Content: content,
		Flags:   discord.MessageFlagEphemeral,
	})
}

func bidErrorMessage(err error, currency string) string {
	var tooLow auction.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		return fmt.Sprintf("Your bid is below the minimum. Bid at least %d %s.", tooLow.Min, currency)
	case errors.Is(err, auction.ErrLotNotFound):
		return "That lot does not exist."
	case errors.Is(err, auction.ErrLotNotActive):
		return "Bidding on this lot is closed."
	case errors.Is(err, auction.ErrNotAuction):
		return "This lot is sold at a fixed price. Use the Buy button."
	case errors.Is(err, auction.ErrBidConflict):
		return "The lot is busy right now, try again in a moment."
	default:
		return fmt.Sprintf("Bid failed: %v", err)
	}
}

func buyErrorMessage(err error) string {
	switch {
	case errors.Is(err, auction.ErrLotNotFound):
		return "That lot does not exist."
	case errors.Is(err, auction.ErrLotNotActive):
		return "This lot is no longer for sale."
	case errors.Is(err, auction.ErrNotSale):
		return "This lot is an auction. Place a bid instead."
	case errors.Is(err, auction.ErrSoldOut):
		return "Sold out. All units are claimed or paid."
	case errors.Is(err, auction.ErrAlreadyClaimed):
		return "You already hold a claim on this lot. Check your DMs."
	default:
		return fmt.Sprintf("Purchase failed: %v", err)
	}
}
