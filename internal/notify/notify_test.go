package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sent struct{ title, message string }

func newCapturing(enabled bool) (*Notifier, *[]sent) {
	var got []sent
	n := New(enabled, nil)
	n.send = func(title, message string) error {
		got = append(got, sent{title, message})
		return nil
	}
	return n, &got
}

func TestNotifier_Disabled(t *testing.T) {
	n, got := newCapturing(false)
	n.Error("boom")
	assert.Empty(t, *got)

	n.SetEnabled(true)
	assert.True(t, n.Enabled())
	n.Error("boom")
	assert.Equal(t, []sent{{"Mudra: Error", "boom"}}, *got)
}

func TestNotifier_TitleAndTruncation(t *testing.T) {
	n, got := newCapturing(true)

	n.Info(strings.Repeat("x", 150))
	n.Connected()

	assert.Len(t, *got, 2)
	assert.Equal(t, "Mudra", (*got)[0].title)
	assert.Len(t, (*got)[0].message, 103)
	assert.Equal(t, "Mudra: Recognition started", (*got)[1].title)
}

func TestNotifier_SendErrorIsIgnored(t *testing.T) {
	n := New(true, nil)
	n.send = func(string, string) error { return errors.New("no dbus") }

	assert.NotPanics(t, func() { n.Disconnected("connection reset") })
}

func TestNotifier_Nil(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() { n.Error("x") })
}
