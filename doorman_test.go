package doorman_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/doorman"
	"github.com/aretw0/doorman/internal/config"
	"github.com/aretw0/doorman/internal/testutils"
	"github.com/aretw0/doorman/pkg/adapters/memory"
	"github.com/aretw0/doorman/pkg/adapters/redis"
	"github.com/aretw0/doorman/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const callersYAML = `
callers:
  "415-555-1111":
    - - gatherDigits
      - "1": [[sendDigits, {value: 9}]]
        default: [[say, {value: "Goodbye."}]]
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Env = config.EnvDevelopment
	cfg.PrimaryPhoneNumber = testutils.PrimaryNumber
	cfg.AssetPath = ""
	cfg.ScriptsPath = filepath.Join(t.TempDir(), "callers.yaml")
	require.NoError(t, os.WriteFile(cfg.ScriptsPath, []byte(callersYAML), 0644))
	return cfg
}

func turn(t *testing.T, h http.Handler, digits string) string {
	t.Helper()
	q := url.Values{"CallSid": {"CA1"}, "From": {testutils.FromNumber}, "To": {testutils.TwilioNumber}}
	if digits != "" {
		q.Set("Digits", digits)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/twilio?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNew_FileScriptsMemoryStore(t *testing.T) {
	app, err := doorman.New(testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	h := app.Handler()
	testutils.AssertXMLContains(t, `numDigits="1"`, turn(t, h, ""))
	testutils.AssertXMLContains(t, `<Play digits="9"></Play>`+testutils.HangUpXML, turn(t, h, "1"))
}

func TestNew_MemoryStoreExpiresAbandonedCalls(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionTTL = 10 * time.Millisecond

	app, err := doorman.New(cfg)
	require.NoError(t, err)
	defer app.Close()

	// The caller hangs up while the call waits for digits: no further turn arrives.
	testutils.AssertXMLContains(t, `numDigits="1"`, turn(t, app.Handler(), ""))
	time.Sleep(50 * time.Millisecond)

	ids, err := app.Store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNew_FileStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = config.StoreFile
	cfg.StorePath = t.TempDir()

	app, err := doorman.New(cfg)
	require.NoError(t, err)

	turn(t, app.Handler(), "")
	ids, err := app.Store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CA1"}, ids)

	// A restarted app resumes the paused call from disk.
	restarted, err := doorman.New(cfg)
	require.NoError(t, err)
	testutils.AssertXMLContains(t, "Goodbye.", turn(t, restarted.Handler(), "5"))
}

func TestNew_EncryptedFileStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = config.StoreFile
	cfg.StorePath = t.TempDir()
	cfg.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	app, err := doorman.New(cfg)
	require.NoError(t, err)
	turn(t, app.Handler(), "")

	raw, err := os.ReadFile(filepath.Join(cfg.StorePath, "CA1.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), testutils.FromNumber)
	assert.Contains(t, string(raw), `"sealed"`)

	restarted, err := doorman.New(cfg)
	require.NoError(t, err)
	testutils.AssertXMLContains(t, "Goodbye.", turn(t, restarted.Handler(), "5"))
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Store = config.StoreRedis
	cfg.ScriptSource = config.ScriptsRedis
	cfg.RedisAddr = mr.Addr()

	seed := redis.NewLookup(redis.NewClient(mr.Addr(), "", 0), cfg.RedisPrefix)
	require.NoError(t, seed.Put(context.Background(), testutils.FromNumber, domain.Script{domain.Say("From redis.")}))

	app, err := doorman.New(cfg)
	require.NoError(t, err)
	defer app.Close()

	testutils.AssertXMLContains(t, "From redis.</Say>", turn(t, app.Handler(), ""))
	assert.False(t, mr.Exists("doorman:call:CA1"), "completed calls are removed")
}

func TestNew_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.PrimaryPhoneNumber = ""
	_, err := doorman.New(cfg)
	assert.ErrorContains(t, err, "invalid configuration")

	cfg = testConfig(t)
	cfg.ScriptsPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = doorman.New(cfg)
	assert.ErrorContains(t, err, "failed to load scripts")

	cfg = testConfig(t)
	cfg.Store = config.StoreRedis
	cfg.RedisAddr = "127.0.0.1:1"
	_, err = doorman.New(cfg)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestApp_Reload(t *testing.T) {
	cfg := testConfig(t)
	app, err := doorman.New(cfg)
	require.NoError(t, err)
	require.NoError(t, app.Reload())

	injected, err := doorman.New(cfg, doorman.WithLookup(memory.NewLookup(nil)))
	require.NoError(t, err)
	assert.Error(t, injected.Reload())
}
