package telegram

import (
	"testing"

	"animedrive/core/deeplink"
	"animedrive/core/telegram/callbacks"
	"animedrive/core/telegram/commands"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func cmd() commands.Command {
	return commands.Command{Handler: noop, Description: "test command"}
}

func TestRegisterCommandValidation(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.RegisterCommand("/watch", cmd()))
	assert.Error(t, reg.RegisterCommand("/watch", cmd()), "duplicate must fail")
	assert.Error(t, reg.RegisterCommand("/WATCH", cmd()), "names are case-insensitive")
	assert.Error(t, reg.RegisterCommand("watch2", cmd()), "missing slash")
	assert.Error(t, reg.RegisterCommand("/bad", commands.Command{Handler: noop}), "missing description")
	assert.NoError(t, reg.RegisterCommand("/ping", commands.Command{Handler: noop, Hidden: true}),
		"hidden commands may omit the description")
}

func TestLookupCommandAliases(t *testing.T) {
	reg := NewRegistry()
	c := cmd()
	c.Aliases = []string{"w"}
	require.NoError(t, reg.RegisterCommand("/watch", c))

	key, _, ok := reg.LookupCommand("/W")
	assert.True(t, ok)
	assert.Equal(t, "/watch", key)

	key, _, ok = reg.LookupCommand("watch")
	assert.True(t, ok)
	assert.Equal(t, "/watch", key)

	_, _, ok = reg.LookupCommand("/unknown")
	assert.False(t, ok)

	assert.Error(t, reg.RegisterCommand("/w", cmd()), "alias collision must fail")
}

func TestMenuExcludesHiddenAndAdmin(t *testing.T) {
	reg := NewRegistry()
	visible := cmd()
	hidden := cmd()
	hidden.Hidden = true
	admin := cmd()
	admin.AdminOnly = true

	require.NoError(t, reg.RegisterCommand("/list", visible))
	require.NoError(t, reg.RegisterCommand("/secret", hidden))
	require.NoError(t, reg.RegisterCommand("/upload", admin))

	menu := reg.MenuCommands()
	require.Len(t, menu, 1)
	assert.Equal(t, "list", menu[0].Text)
}

func TestRegisterCallbackValidation(t *testing.T) {
	reg := NewRegistry()
	handler := func(tele.Context, callbacks.Params) error { return nil }

	require.NoError(t, reg.RegisterCallback("watch", CallbackSpec{Arity: 2, Handler: handler}))
	assert.Error(t, reg.RegisterCallback("Watch", CallbackSpec{Arity: 2, Handler: handler}), "duplicate must fail")
	assert.Error(t, reg.RegisterCallback("wa:tch", CallbackSpec{Handler: handler}), "delimiter in name")
	assert.Error(t, reg.RegisterCallback("", CallbackSpec{Handler: handler}))

	spec, ok := reg.Callback("WATCH")
	assert.True(t, ok)
	assert.Equal(t, 2, spec.Arity)
}

func TestRegisterDeepLink(t *testing.T) {
	reg := NewRegistry()
	h := func(tele.Context, deeplink.Payload) error { return nil }

	require.NoError(t, reg.RegisterDeepLink(deeplink.KindRoute, h))
	assert.Error(t, reg.RegisterDeepLink(deeplink.KindRoute, h), "duplicate kind must fail")

	_, ok := reg.DeepLink(deeplink.KindRoute)
	assert.True(t, ok)
	_, ok = reg.DeepLink(deeplink.KindContentJoin)
	assert.False(t, ok)
}

func TestMessageObserversKeepOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.AddMessageObserver("upload", noop))
	require.NoError(t, reg.AddMessageObserver("chat", noop))
	assert.Error(t, reg.AddMessageObserver("Upload", noop), "duplicate observer must fail")

	obs := reg.MessageObservers()
	require.Len(t, obs, 2)
	assert.Equal(t, "upload", obs[0].Name)
	assert.Equal(t, "chat", obs[1].Name)
}
