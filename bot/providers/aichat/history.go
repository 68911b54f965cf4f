package aichat

import "strings"

// History is a bounded conversation transcript. Appending beyond the
// limit drops the oldest turns in pairs so the transcript always starts
// with a user turn.
type History struct {
	Turns []Turn
	Limit int
}

// Append adds a turn and trims to the limit. Trimming always removes
// whole user/model pairs; a transcript must never open on a model turn.
func (h History) Append(role Role, text string) History {
	h.Turns = append(h.Turns, Turn{Role: role, Text: text})
	if h.Limit > 0 && len(h.Turns) > h.Limit {
		drop := len(h.Turns) - h.Limit
		if drop%2 != 0 {
			drop++
		}
		if drop > len(h.Turns) {
			drop = len(h.Turns)
		}
		h.Turns = append([]Turn(nil), h.Turns[drop:]...)
	}
	return h
}

// SplitMessage chunks text into Telegram-sized pieces, breaking at a
// newline or sentence end when one falls inside the window instead of
// cutting mid-sentence.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = 4096
	}
	if text == "" {
		return nil
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > maxLen {
		cut := splitPoint(runes, maxLen)
		chunk := strings.TrimRight(string(runes[:cut]), " \n")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
		for len(runes) > 0 && (runes[0] == ' ' || runes[0] == '\n') {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// splitPoint picks the cut index for the next chunk: the last newline in
// the window, else the last sentence-ending punctuation, else a hard cut
// at maxLen.
func splitPoint(runes []rune, maxLen int) int {
	window := runes[:maxLen]
	for i := maxLen - 1; i > 0; i-- {
		if window[i] == '\n' {
			return i + 1
		}
	}
	for i := maxLen - 1; i > 0; i-- {
		switch window[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && runes[i+1] != ' ' && runes[i+1] != '\n' {
				continue
			}
			return i + 1
		}
	}
	return maxLen
}
