package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMachineBeginDisplaces(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, Idle, m.Current())

	assert.Equal(t, Idle, m.Begin(AwaitingBroadcast))
	assert.Equal(t, AwaitingBroadcast, m.Current())

	// Starting another flow reports what it displaced.
	assert.Equal(t, AwaitingBroadcast, m.Begin(AwaitingBanID))
	assert.Equal(t, AwaitingBanID, m.Current())
}

func TestMachineFinishOnlyClearsOwnFlow(t *testing.T) {
	m := NewMachine()
	m.Begin(AwaitingCatalogText)
	m.Begin(AwaitingUnbanID)

	// A stale finish from the displaced flow must not clear the new one.
	m.Finish(AwaitingCatalogText)
	assert.Equal(t, AwaitingUnbanID, m.Current())

	m.Finish(AwaitingUnbanID)
	assert.Equal(t, Idle, m.Current())
}

func TestMachineCancel(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, Idle, m.Cancel())

	m.Begin(AwaitingBroadcast)
	assert.Equal(t, AwaitingBroadcast, m.Cancel())
	assert.Equal(t, Idle, m.Current())
}

func TestFlowString(t *testing.T) {
	assert.Equal(t, "broadcast", AwaitingBroadcast.String())
	assert.Equal(t, "catalog edit", AwaitingCatalogText.String())
	assert.Equal(t, "ban", AwaitingBanID.String())
	assert.Equal(t, "unban", AwaitingUnbanID.String())
	assert.Equal(t, "idle", Idle.String())
}
