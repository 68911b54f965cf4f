package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"animedrive/core/deeplink"
	"animedrive/core/logger"
	"animedrive/core/telegram/callbacks"
	"animedrive/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// CallbackHandler receives the already parsed callback params.
type CallbackHandler func(c tele.Context, params callbacks.Params) error

// CallbackSpec binds a handler to its expected parameter count.
// Arity < 0 accepts any number of params.
type CallbackSpec struct {
	Arity   int
	Handler CallbackHandler
}

// DeepLinkHandler receives the decoded /start payload.
type DeepLinkHandler func(c tele.Context, p deeplink.Payload) error

// MessageObserver inspects a non-command message. Observers run in
// registration order; each sees every message regardless of what the
// others did or whether they failed.
type MessageObserver struct {
	Name    string
	Handler tele.HandlerFunc
}

// Registry holds every dispatchable capability: commands, callbacks,
// deep links, inline handlers and plain-message observers. All names
// are case-insensitive and registration of a duplicate is an error so
// that wiring mistakes surface at startup.
type Registry struct {
	mu sync.RWMutex

	commands  map[string]commands.Command
	callbacks map[string]CallbackSpec
	deepLinks map[deeplink.Kind]DeepLinkHandler
	observers []MessageObserver

	inlineHandler    tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry creates an empty Registry with a default unknown-callback
// responder.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]CallbackSpec),
		deepLinks: make(map[deeplink.Kind]DeepLinkHandler),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

// RegisterCommand adds a slash command under its canonical name. A
// description is required for commands that can appear in the menu;
// hidden commands may omit it.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || cmd.Handler == nil {
		return fmt.Errorf("telegram: invalid command registration %q", name)
	}
	if cmd.Description == "" && !cmd.Hidden {
		return fmt.Errorf("telegram: command %q needs a description", name)
	}
	if !strings.HasPrefix(name, "/") {
		return fmt.Errorf("telegram: command %q must start with a slash", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if other, _, ok := r.lookupLocked(name); ok {
		return fmt.Errorf("telegram: command %s already registered as %s", name, other)
	}
	for _, alias := range cmd.Aliases {
		if other, _, ok := r.lookupLocked(alias); ok {
			return fmt.Errorf("telegram: alias %q of %s collides with %s", alias, name, other)
		}
	}
	r.commands[name] = cmd
	return nil
}

// LookupCommand resolves a name or alias to the canonical command.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(name)
}

func (r *Registry) lookupLocked(name string) (string, commands.Command, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			a := strings.ToLower(alias)
			if a == name || "/"+a == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// Commands returns a snapshot of all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// MenuCommands returns the visible command list for the Telegram menu.
func (r *Registry) MenuCommands() []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for name, meta := range r.commands {
		if meta.Hidden || meta.AdminOnly {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// RegisterCallback binds a callback handler name to its spec.
func (r *Registry) RegisterCallback(name string, spec CallbackSpec) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || spec.Handler == nil {
		return fmt.Errorf("telegram: invalid callback registration %q", name)
	}
	if strings.Contains(name, ":") {
		return fmt.Errorf("telegram: callback name %q contains delimiter", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[name]; exists {
		return fmt.Errorf("telegram: callback already registered: %s", name)
	}
	r.callbacks[name] = spec
	return nil
}

// Callback returns the handler entry registered under name.
func (r *Registry) Callback(name string) (CallbackSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.callbacks[strings.ToLower(name)]
	return spec, ok
}

// CallbackNames returns sorted callback names for diagnostics.
func (r *Registry) CallbackNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// RegisterDeepLink binds a handler to decoded /start payloads of kind.
func (r *Registry) RegisterDeepLink(kind deeplink.Kind, h DeepLinkHandler) error {
	if kind == "" || h == nil {
		return fmt.Errorf("telegram: invalid deep link registration %q", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.deepLinks[kind]; exists {
		return fmt.Errorf("telegram: deep link kind already registered: %s", kind)
	}
	r.deepLinks[kind] = h
	return nil
}

// DeepLink returns the handler for a payload kind.
func (r *Registry) DeepLink(kind deeplink.Kind) (DeepLinkHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.deepLinks[kind]
	return h, ok
}

// AddMessageObserver appends an observer for non-command messages.
func (r *Registry) AddMessageObserver(name string, h tele.HandlerFunc) error {
	if name == "" || h == nil {
		return fmt.Errorf("telegram: invalid message observer %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.observers {
		if strings.EqualFold(o.Name, name) {
			return fmt.Errorf("telegram: message observer already registered: %s", name)
		}
	}
	r.observers = append(r.observers, MessageObserver{Name: name, Handler: h})
	return nil
}

// MessageObservers returns the observers in registration order.
func (r *Registry) MessageObservers() []MessageObserver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MessageObserver, len(r.observers))
	copy(out, r.observers)
	return out
}

// SetInlineHandler installs the inline query handler.
func (r *Registry) SetInlineHandler(h tele.HandlerFunc) {
	r.mu.Lock()
	r.inlineHandler = h
	r.mu.Unlock()
}

// InlineHandler returns the inline query handler, if any.
func (r *Registry) InlineHandler() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inlineHandler
}

// SetCallbackNotFound replaces the fallback for unknown callbacks.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.mu.Lock()
		r.callbackNotFound = h
		r.mu.Unlock()
	}
}

// CallbackNotFound returns the unknown-callback fallback.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text no observer claimed.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the current text fallback handler.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// InitBotCommands publishes the visible command menu to Telegram.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if err := bot.SetCommands(reg.MenuCommands()); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
