package commands

import (
	"github.com/disgoorg/disgo/discord"
)

var Commands = []discord.ApplicationCommandCreate{
	LotCommand,
	BidCommand,
	OffersCommand,
}

func intPtr(v int) *int {
	return &v
}
