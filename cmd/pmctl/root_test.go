package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projecthub/pkg/outbox"
)

func TestMigrateList_DoesNotNeedDatabase(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"migrate", "--list"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "001_init.sql")
}

func TestOutboxReplay_RejectsBadID(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"outbox", "replay", "abc"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid event id")
}

func TestOutboxReplay_RequiresOneArg(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"outbox", "replay"})

	assert.Error(t, root.Execute())
}

func TestPrintEvents(t *testing.T) {
	msg := "broker down"
	events := []*outbox.Event{{ID: 7, RoutingKey: "notification.created", RetryCount: 3, LastError: &msg}}

	var table bytes.Buffer
	require.NoError(t, printEvents(&table, events, false))
	assert.Contains(t, table.String(), "notification.created")
	assert.Contains(t, table.String(), "broker down")

	var empty bytes.Buffer
	require.NoError(t, printEvents(&empty, nil, false))
	assert.Equal(t, "no failed events\n", empty.String())

	var js bytes.Buffer
	require.NoError(t, printEvents(&js, events, true))
	assert.Contains(t, js.String(), `"RoutingKey": "notification.created"`)
}
