package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/doorman/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	callID := "contract-test-call-" + time.Now().Format("20060102150405")
	call := domain.Call{ID: callID, From: "415-555-1111", To: "415-555-3333"}

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewCallState(call, domain.Script{domain.Say("hello")})
		state.Position = 1

		err := store.Save(ctx, callID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, callID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, call, loaded.Call)
		assert.Equal(t, 1, loaded.Position)
		assert.Equal(t, domain.StatusRunning, loaded.Status)
		assert.Equal(t, state.Script, loaded.Script)
	})

	t.Run("Save and Load Paused", func(t *testing.T) {
		branchA := domain.Script{domain.Say("A")}
		state := domain.NewCallState(call, domain.Script{})
		state.Status = domain.StatusPaused
		state.Resume = domain.NewResolver(map[string]domain.Script{
			"1":                  branchA,
			domain.DefaultBranch: {domain.HangUp()},
		})

		require.NoError(t, store.Save(ctx, callID, state))

		loaded, err := store.Load(ctx, callID)
		require.NoError(t, err)
		assert.True(t, loaded.Paused())
		require.NotNil(t, loaded.Resume)
		assert.Equal(t, branchA, loaded.Resume.Resolve("1"))
		assert.Equal(t, domain.Script{domain.HangUp()}, loaded.Resume.Resolve("2"))
	})

	t.Run("Load Is Isolated", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, callID, domain.NewCallState(call, nil)))

		loaded, err := store.Load(ctx, callID)
		require.NoError(t, err)
		loaded.Position = 99

		again, err := store.Load(ctx, callID)
		require.NoError(t, err)
		assert.Equal(t, 0, again.Position, "mutating a loaded state must not affect the store")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+callID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, callID, domain.NewCallState(call, nil))
		require.NoError(t, err)

		err = store.Delete(ctx, callID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, callID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := callID + "-1"
		id2 := callID + "-2"
		_ = store.Save(ctx, id1, domain.NewCallState(domain.Call{ID: id1}, nil))
		_ = store.Save(ctx, id2, domain.NewCallState(domain.Call{ID: id2}, nil))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		calls, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, calls, id1)
		assert.Contains(t, calls, id2)
	})
}

// RunScriptLookupContract verifies a ScriptLookup seeded with script for caller.
func RunScriptLookupContract(t *testing.T, lookup ScriptLookup, caller string, script domain.Script) {
	ctx := context.Background()

	t.Run("Lookup Found", func(t *testing.T) {
		got, err := lookup.Lookup(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, script, got)
	})

	t.Run("Lookup Not Found", func(t *testing.T) {
		_, err := lookup.Lookup(ctx, "unknown-"+caller)
		assert.ErrorIs(t, err, domain.ErrScriptNotFound)
	})
}
