package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/kirillLeo1/Auction/auctionbot"
	"github.com/kirillLeo1/Auction/auctionbot/auction"
	"github.com/kirillLeo1/Auction/auctionbot/database/models"
	"github.com/kirillLeo1/Auction/auctionbot/handlers"
)

const offersPerPage = 6

var OffersCommand = discord.SlashCommandCreate{
	Name:        "offers",
	Description: "Show your won and claimed lots",
}

type OfferHandler struct {
	bot *auctionbot.Bot
}

func NewOfferHandler(b *auctionbot.Bot) *OfferHandler {
	return &OfferHandler{bot: b}
}

func (h *OfferHandler) Register(r handler.Router) {
	r.Command("/offers", handlers.WrapWithLogging("offers", h.HandleOffers))
	r.Component("/offer/postpone/{offer_id}", handlers.WrapComponentWithLogging("offer-postpone", h.HandlePostpone))
	r.Component("/offer/decline/{offer_id}", handlers.WrapComponentWithLogging("offer-decline", h.HandleDecline))
	r.Component("/offer/contact/{offer_id}", h.HandleContactButton)
	r.Modal("/offer/contact-modal/{offer_id}", handlers.WrapModalWithLogging("offer-contact", h.HandleContactModal))
}

func (h *OfferHandler) HandleOffers(event *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	offers, err := h.bot.OfferRepository.ListForUser(ctx, event.User().ID.String())
	if err != nil {
		return err
	}
	if len(offers) == 0 {
		return event.CreateMessage(discord.MessageCreate{
			Content: "You have no offers yet. Win an auction or buy a lot first.",
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	lotTitles := make(map[int64]string, len(offers))
	for _, offer := range offers {
		if _, ok := lotTitles[offer.LotID]; ok {
			continue
		}
		lot, err := h.bot.LotRepository.GetByID(ctx, offer.LotID)
		if err == nil && lot != nil {
			lotTitles[offer.LotID] = fmt.Sprintf("Lot #%d: %s", lot.PublicID, lot.Title)
		} else {
			lotTitles[offer.LotID] = fmt.Sprintf("Lot (internal %d)", offer.LotID)
		}
	}

	totalPages := int(math.Ceil(float64(len(offers)) / float64(offersPerPage)))

	return h.bot.Paginator.Create(event.Respond, paginator.Pages{
		ID:      event.ID().String(),
		Creator: event.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			startIdx := page * offersPerPage
			endIdx := min(startIdx+offersPerPage, len(offers))

			var description strings.Builder
			for _, offer := range offers[startIdx:endIdx] {
				description.WriteString(fmt.Sprintf("**%s**\n%s at %d %s",
					lotTitles[offer.LotID],
					offerStatusLabel(offer.Status),
					offer.Price, h.bot.Cfg.Auction.Currency))
				if offer.Status.Active() && !offer.HoldUntil.IsZero() {
					description.WriteString(fmt.Sprintf(", pay before <t:%d:f>", offer.HoldUntil.Unix()))
				}
				if offer.InvoiceURL != "" && offer.Status.Active() {
					description.WriteString(fmt.Sprintf("\n[Pay now](%s)", offer.InvoiceURL))
				}
				description.WriteString("\n\n")
			}

			embed.SetTitle("Your offers").
				SetDescription(description.String()).
				SetColor(0x2b2d31).
				SetFooter(fmt.Sprintf("Page %d/%d", page+1, totalPages), "")
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, true)
}

func offerStatusLabel(status models.OfferStatus) string {
	switch status {
	case models.OfferStatusOffered:
		return "Awaiting payment"
	case models.OfferStatusPostponed:
		return "Postponed"
	case models.OfferStatusPaid:
		return "Paid"
	case models.OfferStatusDeclined:
		return "Declined"
	case models.OfferStatusExpired:
		return "Expired"
	case models.OfferStatusCanceled:
		return "In reserve"
	default:
		return string(status)
	}
}

func (h *OfferHandler) HandlePostpone(event *handler.ComponentEvent) error {
	offerID, err := strconv.ParseInt(event.Vars["offer_id"], 10, 64)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := h.bot.Manager.Postpone(ctx, offerID, event.User().ID.String()); err != nil {
		return event.CreateMessage(discord.MessageCreate{
			Content: offerErrorMessage(err),
			Flags:   discord.MessageFlagEphemeral,
		})
	}
	return event.CreateMessage(discord.MessageCreate{
		Content: "Noted. Your claim stays reserved until the payment deadline. You can fill in delivery details now so shipping starts right after payment.",
		Components: []discord.ContainerComponent{
			discord.NewActionRow(
				discord.NewSecondaryButton("Delivery details", fmt.Sprintf("/offer/contact/%d", offerID)),
			),
		},
		Flags: discord.MessageFlagEphemeral,
	})
}

func (h *OfferHandler) HandleDecline(event *handler.ComponentEvent) error {
	offerID, err := strconv.ParseInt(event.Vars["offer_id"], 10, 64)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := h.bot.Manager.Decline(ctx, offerID, event.User().ID.String()); err != nil {
		return event.CreateMessage(discord.MessageCreate{
			Content: offerErrorMessage(err),
			Flags:   discord.MessageFlagEphemeral,
		})
	}
	return event.CreateMessage(discord.MessageCreate{
		Content: "You declined the lot. It will be offered to the next bidder.",
		Flags:   discord.MessageFlagEphemeral,
	})
}

// HandleContactButton opens the delivery details form.
func (h *OfferHandler) HandleContactButton(event *handler.ComponentEvent) error {
	offerID := event.Vars["offer_id"]
	return event.Modal(discord.ModalCreate{
		CustomID: fmt.Sprintf("/offer/contact-modal/%s", offerID),
		Title:    "Delivery details",
		Components: []discord.ContainerComponent{
			discord.NewActionRow(
				discord.NewTextInput("full_name", discord.TextInputStyleShort, "Full name").
					WithRequired(true),
			),
			discord.NewActionRow(
				discord.NewTextInput("phone", discord.TextInputStyleShort, "Phone number").
					WithRequired(true),
			),
			discord.NewActionRow(
				discord.NewTextInput("city", discord.TextInputStyleShort, "City / region").
					WithRequired(true),
			),
			discord.NewActionRow(
				discord.NewTextInput("delivery", discord.TextInputStyleShort, "Delivery service").
					WithRequired(true),
			),
			discord.NewActionRow(
				discord.NewTextInput("address", discord.TextInputStyleParagraph, "Address or branch, plus any comment").
					WithRequired(true),
			),
		},
	})
}

func (h *OfferHandler) HandleContactModal(event *handler.ModalEvent) error {
	offerID, err := strconv.ParseInt(event.Vars["offer_id"], 10, 64)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	details := auction.ContactDetails{
		FullName:   strings.TrimSpace(event.Data.Text("full_name")),
		Phone:      strings.TrimSpace(event.Data.Text("phone")),
		CityRegion: strings.TrimSpace(event.Data.Text("city")),
		Delivery:   strings.TrimSpace(event.Data.Text("delivery")),
		Address:    strings.TrimSpace(event.Data.Text("address")),
	}

	if err := h.bot.Manager.SetContactDetails(ctx, offerID, event.User().ID.String(), details); err != nil {
		return event.CreateMessage(discord.MessageCreate{
			Content: offerErrorMessage(err),
			Flags:   discord.MessageFlagEphemeral,
		})
	}
	return event.CreateMessage(discord.MessageCreate{
		Content: "Thank you! The operators received your delivery details.",
		Flags:   discord.MessageFlagEphemeral,
	})
}

func offerErrorMessage(err error) string {
	switch {
	case errors.Is(err, auction.ErrOfferNotFound):
		return "This offer no longer exists."
	case errors.Is(err, auction.ErrNotOfferOwner):
		return "This offer belongs to someone else."
	case errors.Is(err, auction.ErrOfferNotActive):
		return "This offer is already settled: it was paid, declined or expired."
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}
