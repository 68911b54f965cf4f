package keyboard

import (
	"animedrive/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// InlineBtn describes an inline button. Handler plus Params become the
// colon-delimited callback data; URL buttons set URL instead.
type InlineBtn struct {
	Text    string
	Handler string
	Params  []string
	URL     string
}

const defaultCancelButtonText = "❌ Cancel"

func (b InlineBtn) inline() tele.InlineButton {
	if b.URL != "" {
		return tele.InlineButton{Text: b.Text, URL: b.URL}
	}
	return tele.InlineButton{Text: b.Text, Data: callbacks.MustBuild(b.Handler, b.Params...)}
}

// ForceReply returns a markup that forces the user to reply.
func ForceReply() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{ForceReply: true}
}

// RemoveKeyboard returns a markup that hides the reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// Inline builds an inline keyboard with each button on its own row.
func Inline(buttons ...InlineBtn) *tele.ReplyMarkup {
	rows := make([][]InlineBtn, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineBtn{b})
	}
	return InlineRows(rows...)
}

// InlineRows builds an inline keyboard from explicit rows.
func InlineRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = btn.inline()
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}

// InlineNPerRow splits a flat button list into rows of up to n buttons.
func InlineNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	if n <= 1 {
		return Inline(buttons...)
	}
	var rows [][]InlineBtn
	for i := 0; i < len(buttons); i += n {
		end := i + n
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[i:end])
	}
	return InlineRows(rows...)
}

// CancelButton returns a cancel button wired to the given handler name.
func CancelButton(handler string, label ...string) InlineBtn {
	text := defaultCancelButtonText
	if len(label) > 0 && label[0] != "" {
		text = label[0]
	}
	return InlineBtn{Text: text, Handler: handler, Params: []string{"cancel"}}
}

// SingleCancelMarkup creates an inline keyboard with only a cancel button.
func SingleCancelMarkup(handler string, label ...string) *tele.ReplyMarkup {
	return Inline(CancelButton(handler, label...))
}
