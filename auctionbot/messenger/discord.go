package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
)

const embedColor = 0x2b2d31

// Discord delivers all user-facing traffic: the public lot listings in the
// sale channel, and DMs for grants, reminders, outbids and payment follow-ups.
// It implements auction.Notifier.
type Discord struct {
	client    bot.Client
	channelID snowflake.ID
	adminIDs  []snowflake.ID
	currency  string
	mu        sync.RWMutex
}

func New(channelID snowflake.ID, adminIDs []snowflake.ID, currency string) *Discord {
	return &Discord{
		channelID: channelID,
		adminIDs:  adminIDs,
		currency:  currency,
	}
}

// SetClient attaches the gateway client once the bot is connected.
func (d *Discord) SetClient(client bot.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.client = client
}

func (d *Discord) rest() (bot.Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.client == nil {
		return nil, fmt.Errorf("messenger has no gateway client yet")
	}
	return d.client, nil
}

func (d *Discord) money(amount int64) string {
	return fmt.Sprintf("%d %s", amount, d.currency)
}

// PublishLot posts the public listing message and returns its message ID.
func (d *Discord) PublishLot(ctx context.Context, lot *models.Lot, photoURLs []string) (string, error) {
	client, err := d.rest()
	if err != nil {
		return "", err
	}

	builder := discord.NewMessageCreateBuilder().
		SetEmbeds(d.listingEmbed(lot, photoURLs)).
		AddContainerComponents(d.listingButtons(lot))

	msg, err := client.Rest().CreateMessage(d.channelID, builder.Build())
	if err != nil {
		return "", fmt.Errorf("failed to publish lot %d: %w", lot.PublicID, err)
	}
	return msg.ID.String(), nil
}

// LotDisplayUpdate refreshes the listing in place after a price change.
func (d *Discord) LotDisplayUpdate(ctx context.Context, lot *models.Lot) error {
	if lot.MessageID == "" {
		return nil
	}
	client, err := d.rest()
	if err != nil {
		return err
	}
	messageID, err := snowflake.Parse(lot.MessageID)
	if err != nil {
		return fmt.Errorf("lot %d has malformed message id %q: %w", lot.PublicID, lot.MessageID, err)
	}

	// Buttons are rebuilt too: a relisted lot switches from bidding to a
	// direct buy and the entry point must follow.
	_, err = client.Rest().UpdateMessage(d.channelID, messageID, discord.NewMessageUpdateBuilder().
		SetEmbeds(d.listingEmbed(lot, nil)).
		SetContainerComponents(d.listingButtons(lot)).
		Build())
	return err
}

func (d *Discord) listingButtons(lot *models.Lot) discord.ContainerComponent {
	if lot.IsSale() {
		return discord.NewActionRow(
			discord.NewPrimaryButton("Buy", fmt.Sprintf("/lot/buy/%d", lot.PublicID)),
		)
	}
	return discord.NewActionRow(
		discord.NewPrimaryButton("Place a bid", fmt.Sprintf("/lot/bid/%d", lot.PublicID)),
	)
}

// LotDisplayRemove deletes the public listing.
func (d *Discord) LotDisplayRemove(ctx context.Context, lot *models.Lot) error {
	if lot.MessageID == "" {
		return nil
	}
	client, err := d.rest()
	if err != nil {
		return err
	}
	messageID, err := snowflake.Parse(lot.MessageID)
	if err != nil {
		return err
	}
	return client.Rest().DeleteMessage(d.channelID, messageID)
}

func (d *Discord) listingEmbed(lot *models.Lot, photoURLs []string) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("Lot #%d: %s", lot.PublicID, lot.Title)).
		SetColor(embedColor)

	if lot.Description != "" {
		builder.SetDescription(lot.Description)
	}

	if lot.IsSale() {
		builder.AddField("Price", d.money(lot.CurrentPrice), true)
	} else {
		builder.AddField("Current price", d.money(lot.CurrentPrice), true)
		builder.AddField("Minimum raise", d.money(lot.MinStep), true)
		if lot.CurrentWinnerID != "" {
			builder.AddField("Leading", fmt.Sprintf("<@%s>", lot.CurrentWinnerID), true)
		}
	}
	if lot.Quantity > 1 {
		builder.AddField("Quantity", fmt.Sprintf("%d", lot.Quantity), true)
	}
	if len(photoURLs) > 0 {
		builder.SetImage(photoURLs[0])
	}
	return builder.Build()
}

// OfferGranted DMs the winner a time-boxed purchase right with the payment
// link and the postpone/decline controls.
func (d *Discord) OfferGranted(ctx context.Context, lot *models.Lot, offer *models.Offer) error {
	embed := discord.NewEmbedBuilder().
		SetTitle("You won a lot!").
		SetDescription(fmt.Sprintf("Your claim on **Lot #%d: %s** is confirmed at **%s**.\nComplete the payment before the deadline or the lot goes to the next bidder.",
			lot.PublicID, lot.Title, d.money(offer.Price))).
		SetColor(embedColor)
	if !offer.HoldUntil.IsZero() {
		embed.AddField("Pay before", fmt.Sprintf("<t:%d:f>", offer.HoldUntil.Unix()), false)
	}

	builder := discord.NewMessageCreateBuilder().SetEmbeds(embed.Build())
	row := []discord.InteractiveComponent{}
	if offer.InvoiceURL != "" {
		row = append(row, discord.NewLinkButton("Pay now", offer.InvoiceURL))
	}
	row = append(row,
		discord.NewSecondaryButton("Postpone", fmt.Sprintf("/offer/postpone/%d", offer.ID)),
		discord.NewDangerButton("Decline", fmt.Sprintf("/offer/decline/%d", offer.ID)),
	)
	builder.AddActionRow(row...)

	return d.dm(ctx, offer.UserID, builder.Build())
}

// OfferReminder is the one-time deadline warning.
func (d *Discord) OfferReminder(ctx context.Context, lot *models.Lot, offer *models.Offer) error {
	embed := discord.NewEmbedBuilder().
		SetTitle("Payment deadline approaching").
		SetDescription(fmt.Sprintf("Your claim on **Lot #%d: %s** expires <t:%d:R>. After that the lot is released to the next bidder.",
			lot.PublicID, lot.Title, offer.HoldUntil.Unix())).
		SetColor(embedColor)

	builder := discord.NewMessageCreateBuilder().SetEmbeds(embed.Build())
	if offer.InvoiceURL != "" {
		builder.AddActionRow(discord.NewLinkButton("Pay now", offer.InvoiceURL))
	}
	return d.dm(ctx, offer.UserID, builder.Build())
}

// Outbid tells the previous leader they lost the top spot.
func (d *Discord) Outbid(ctx context.Context, lot *models.Lot, previousLeaderID string) error {
	embed := discord.NewEmbedBuilder().
		SetTitle("You have been outbid").
		SetDescription(fmt.Sprintf("Someone raised above you on **Lot #%d: %s**. The price is now **%s**.",
			lot.PublicID, lot.Title, d.money(lot.CurrentPrice))).
		SetColor(embedColor)
	return d.dm(ctx, previousLeaderID, discord.NewMessageCreateBuilder().
		SetEmbeds(embed.Build()).
		Build())
}

// PaymentReceived confirms the payment and asks for delivery details.
func (d *Discord) PaymentReceived(ctx context.Context, lot *models.Lot, offer *models.Offer) error {
	embed := discord.NewEmbedBuilder().
		SetTitle("Payment received").
		SetDescription(fmt.Sprintf("Thank you! Your payment of **%s** for **Lot #%d: %s** is confirmed.\nFill in the delivery details so we can ship your lot.",
			d.money(offer.Price), lot.PublicID, lot.Title)).
		SetColor(embedColor)

	return d.dm(ctx, offer.UserID, discord.NewMessageCreateBuilder().
		SetEmbeds(embed.Build()).
		AddActionRow(discord.NewPrimaryButton("Delivery details", fmt.Sprintf("/offer/contact/%d", offer.ID))).
		Build())
}

// ContactDetailsReceived forwards the delivery form to every operator.
func (d *Discord) ContactDetailsReceived(ctx context.Context, lot *models.Lot, offer *models.Offer) error {
	embed := discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("Delivery details for Lot #%d", lot.PublicID)).
		SetColor(embedColor).
		AddField("Buyer", fmt.Sprintf("<@%s>", offer.UserID), true).
		AddField("Amount", d.money(offer.Price), true).
		AddField("Full name", offer.ContactFullName, false).
		AddField("Phone", offer.ContactPhone, true).
		AddField("City / region", offer.ContactCityRegion, true).
		AddField("Delivery service", offer.ContactDelivery, true).
		AddField("Address / branch", offer.ContactAddress, false)
	if offer.ContactComment != "" {
		embed.AddField("Comment", offer.ContactComment, false)
	}

	msg := discord.NewMessageCreateBuilder().SetEmbeds(embed.Build()).Build()
	var lastErr error
	for _, adminID := range d.adminIDs {
		if err := d.dm(ctx, adminID.String(), msg); err != nil {
			slog.Warn("Failed to DM operator",
				slog.String("admin_id", adminID.String()),
				slog.Any("error", err))
			lastErr = err
		}
	}
	return lastErr
}

func (d *Discord) dm(ctx context.Context, userID string, message discord.MessageCreate) error {
	client, err := d.rest()
	if err != nil {
		return err
	}
	id, err := snowflake.Parse(userID)
	if err != nil {
		return fmt.Errorf("malformed user id %q: %w", userID, err)
	}

	channel, err := client.Rest().CreateDMChannel(id)
	if err != nil {
		return fmt.Errorf("failed to open DM channel with %s: %w", userID, err)
	}
	_, err = client.Rest().CreateMessage(channel.ID(), message)
	return err
}
