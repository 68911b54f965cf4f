package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command describes a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly restricts the command to the configured owner.
	AdminOnly bool
	// Hidden keeps the command out of the Telegram command menu.
	Hidden bool
	// Gated routes the command through the access gate before execution.
	Gated   bool
	Aliases []string
}
