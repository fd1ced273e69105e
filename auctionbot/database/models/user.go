package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64     `bun:"id,pk,autoincrement"`
	DiscordID string    `bun:"discord_id,notnull,unique"`
	Username  string    `bun:"username"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
