package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/aretw0/doorman/internal/testutils"
	"github.com/aretw0/doorman/pkg/adapters/memory"
	"github.com/aretw0/doorman/pkg/domain"
	"github.com/aretw0/doorman/pkg/persistence/middleware"
	"github.com/aretw0/doorman/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, middleware.KeySize)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func pausedState() *domain.CallState {
	state := domain.NewCallState(testutils.Call("CA1"), domain.Script{
		domain.GatherDigits(map[string]domain.Script{
			"1":                  {domain.SendSms("415-555-7777", "secret code 1234")},
			domain.DefaultBranch: {},
		}),
	})
	state.Status = domain.StatusPaused
	state.Resume = domain.NewResolver(state.Script[0].Branches)
	return state
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	store := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewStore())
	ports.RunSessionStoreContract(t, store)
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()
	original := pausedState()

	require.NoError(t, secure.Save(ctx, "CA1", original))

	// The underlying store only sees the envelope.
	stored, err := underlying.Load(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, "CA1", stored.ID)
	assert.Equal(t, domain.StatusPaused, stored.Status)
	assert.Empty(t, stored.From)
	assert.Empty(t, stored.Script)
	assert.Nil(t, stored.Resume)
	assert.NotContains(t, string(stored.Sealed), "secret code")

	loaded, err := secure.Load(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, original.Call, loaded.Call)
	assert.Equal(t, original.Script, loaded.Script)
	assert.Equal(t, original.Resume, loaded.Resume)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, secureOld.Save(ctx, "CA1", pausedState()))

	secureNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := secureNew.Load(ctx, "CA1")
	require.NoError(t, err, "fallback key decrypts old data")

	// Saving again re-encrypts with the new key.
	loaded.Position = 1
	require.NoError(t, secureNew.Save(ctx, "CA1", loaded))

	_, err = secureOld.Load(ctx, "CA1")
	assert.Error(t, err, "old key alone cannot read new data")
}

func TestEncryptionMiddleware_RejectsPlainState(t *testing.T) {
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(context.Background(), "CA1", pausedState()))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(context.Background(), "CA1")
	assert.ErrorContains(t, err, "missing encrypted data envelope")

	_, err = secure.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	parsed, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = middleware.ParseKey("not base64!")
	assert.Error(t, err)

	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.SessionStore) ports.SessionStore {
			order = append(order, name)
			return next
		}
	}

	middleware.Chain(memory.NewStore(), tag("outer"), tag("inner"))
	assert.Equal(t, []string{"inner", "outer"}, order, "inner wraps the store first")
}
