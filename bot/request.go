package bot

import (
	"fmt"
	"sync"
	"time"

	"animedrive/core/session"
)

const requestPrompt = "📝 What would you like to request?\n\n" +
	"Examples:\n• Anime: <Name>\n• Movie: <Name>\n• Feedback: ..."

// RequestFlow collects a free-form user request and relays it to the
// admin group, with a per-user cooldown between submissions.
type RequestFlow struct {
	sessions *session.Store
	ttl      time.Duration
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[int64]time.Time
}

func NewRequestFlow(sessions *session.Store, ttl, cooldown time.Duration) *RequestFlow {
	return &RequestFlow{
		sessions: sessions,
		ttl:      ttl,
		cooldown: cooldown,
		now:      time.Now,
		lastSent: make(map[int64]time.Time),
	}
}

// Begin opens the request prompt, unless the user is still cooling down.
func (f *RequestFlow) Begin(owner int64) (string, bool) {
	if remaining := f.remaining(owner); remaining > 0 {
		return fmt.Sprintf("Please wait %d seconds before making another request.",
			int(remaining.Seconds())+1), false
	}
	f.sessions.Put(session.FlowRequest, owner, struct{}{}, f.ttl)
	return requestPrompt, true
}

func (f *RequestFlow) remaining(owner int64) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	last, ok := f.lastSent[owner]
	if !ok {
		return 0
	}
	elapsed := f.now().Sub(last)
	if elapsed >= f.cooldown {
		delete(f.lastSent, owner)
		return 0
	}
	return f.cooldown - elapsed
}

// HandleText consumes the pending request. It returns the admin relay
// text, the user-facing reply, and whether the text belonged to this flow.
func (f *RequestFlow) HandleText(owner int64, username, text string) (adminMsg, userReply string, handled bool) {
	if _, ok := f.sessions.Get(session.FlowRequest, owner); !ok {
		return "", "", false
	}
	if len(text) > 0 && text[0] == '/' {
		// Commands pass through untouched; the prompt stays open.
		return "", "", false
	}

	f.sessions.Remove(session.FlowRequest, owner)
	f.mu.Lock()
	f.lastSent[owner] = f.now()
	f.mu.Unlock()

	if username == "" {
		username = "unknown"
	}
	adminMsg = fmt.Sprintf("✉️ New request\n👤 @%s\n🪪 UID: %d\n\n➤ %s", username, owner, text)
	userReply = "✅ Your request has been sent to the admins!"
	return adminMsg, userReply, true
}
