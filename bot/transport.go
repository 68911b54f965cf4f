package bot

import (
	"context"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"animedrive/core/delivery"
)

// BotTransport sends delivery items through the Telegram Bot API. Items
// whose SourceRef is a "msg:<id>" handle are copied out of the storage
// group; everything else is treated as a reusable file id.
type BotTransport struct {
	bot            *tele.Bot
	storageGroupID int64
}

func NewBotTransport(bot *tele.Bot, storageGroupID int64) *BotTransport {
	return &BotTransport{bot: bot, storageGroupID: storageGroupID}
}

var _ delivery.Transport = (*BotTransport)(nil)

func (t *BotTransport) SendItem(ctx context.Context, dest int64, item delivery.Item) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if msgID, ok := strings.CutPrefix(item.SourceRef, "msg:"); ok {
		msg, err := t.bot.Copy(tele.ChatID(dest), tele.StoredMessage{
			MessageID: msgID,
			ChatID:    t.storageGroupID,
		})
		if err != nil {
			return 0, err
		}
		return msg.ID, nil
	}
	doc := &tele.Document{
		File:    tele.File{FileID: item.SourceRef},
		Caption: item.Caption,
	}
	msg, err := t.bot.Send(tele.ChatID(dest), doc, tele.ModeMarkdown)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (t *BotTransport) SendNotice(ctx context.Context, dest int64, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg, err := t.bot.Send(tele.ChatID(dest), text, tele.ModeMarkdown)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (t *BotTransport) DeleteMessage(_ context.Context, dest int64, messageID int) error {
	return t.bot.Delete(tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    dest,
	})
}
