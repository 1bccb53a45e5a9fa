package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rin-bot/internal/domain"
)

const testPersona = "You are a helpful assistant."

func TestConversationStore_EnsureThread(t *testing.T) {
	store := NewConversationStore(testPersona, 12)

	store.EnsureThread("u1", "")
	snap := store.Snapshot("u1")
	require.Len(t, snap, 1)
	assert.Equal(t, domain.RoleSystem, snap[0].Role)
	assert.Equal(t, testPersona, snap[0].Content)

	// Persona argument applies only on creation.
	store.EnsureThread("u1", "pirate captain")
	snap = store.Snapshot("u1")
	assert.Equal(t, testPersona, snap[0].Content)

	store.EnsureThread("u2", "pirate captain")
	assert.Equal(t, "pirate captain", store.Snapshot("u2")[0].Content)
}

func TestConversationStore_TrimKeepsSystemPlusRecent(t *testing.T) {
	store := NewConversationStore(testPersona, 12)

	for i := 0; i < 20; i++ {
		store.AppendUser("u1", fmt.Sprintf("q%d", i))
		store.AppendAssistant("u1", fmt.Sprintf("a%d", i))
	}

	snap := store.Snapshot("u1")
	require.Len(t, snap, 13)
	assert.Equal(t, domain.RoleSystem, snap[0].Role)
	assert.Equal(t, testPersona, snap[0].Content)
	// Most recent 12 messages survive, oldest first.
	assert.Equal(t, "q14", snap[1].Content)
	assert.Equal(t, "a19", snap[12].Content)
}

func TestConversationStore_SetPersonaPinsIndexZero(t *testing.T) {
	store := NewConversationStore(testPersona, 12)

	store.SetPersona("u1", "swim club captain")
	for i := 0; i < 30; i++ {
		store.AppendUser("u1", "hi")
		store.AppendAssistant("u1", "hello")
	}

	snap := store.Snapshot("u1")
	require.Len(t, snap, 13)
	assert.Equal(t, "swim club captain", snap[0].Content)

	// SetPersona does not touch history.
	store.SetPersona("u1", "lifeguard")
	snap = store.Snapshot("u1")
	require.Len(t, snap, 13)
	assert.Equal(t, "lifeguard", snap[0].Content)
	assert.Equal(t, domain.RoleAssistant, snap[12].Role)
}

func TestConversationStore_Reset(t *testing.T) {
	store := NewConversationStore(testPersona, 12)

	store.SetPersona("u1", "custom")
	store.AppendUser("u1", "hi")
	store.Reset("u1")

	assert.Nil(t, store.Snapshot("u1"))
	assert.Equal(t, 0, store.Len("u1"))

	// Next interaction starts fresh with the default persona.
	store.EnsureThread("u1", "")
	snap := store.Snapshot("u1")
	require.Len(t, snap, 1)
	assert.Equal(t, testPersona, snap[0].Content)
}

func TestConversationStore_SnapshotIsACopy(t *testing.T) {
	store := NewConversationStore(testPersona, 12)

	store.AppendUser("u1", "hi")
	snap := store.Snapshot("u1")
	snap[0].Content = "tampered"
	snap[1].Content = "tampered"

	fresh := store.Snapshot("u1")
	assert.Equal(t, testPersona, fresh[0].Content)
	assert.Equal(t, "hi", fresh[1].Content)
}

func TestConversationStore_IdentitiesAreIndependent(t *testing.T) {
	store := NewConversationStore(testPersona, 12)

	store.AppendUser("u1", "one")
	store.AppendUser("u2", "two")
	store.Reset("u1")

	assert.Equal(t, 0, store.Len("u1"))
	assert.Equal(t, 2, store.Len("u2"))
}
