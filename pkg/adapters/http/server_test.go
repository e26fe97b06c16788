package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/doorman/internal/testutils"
	webhook "github.com/aretw0/doorman/pkg/adapters/http"
	"github.com/aretw0/doorman/pkg/adapters/memory"
	"github.com/aretw0/doorman/pkg/domain"
	"github.com/aretw0/doorman/pkg/observability"
	"github.com/aretw0/doorman/pkg/ports"
	"github.com/aretw0/doorman/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	accountSid     = "1"
	applicationSid = "2"
	longSequence   = "613731214614354234123"
)

type app struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
	metrics *observability.Metrics
}

func newApp(t *testing.T, lookup ports.ScriptLookup, mutate ...func(*webhook.Config)) *app {
	t.Helper()
	cfg := webhook.Config{
		PrimaryPhoneNumber: testutils.PrimaryNumber,
		TwilioPhoneNumber:  testutils.TwilioNumber,
		AccountSid:         accountSid,
		ApplicationSid:     applicationSid,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	store := memory.NewStore()
	metrics := observability.NewMetrics()
	registry := session.NewRegistry(store, session.WithRegistryHooks(metrics.Hooks()))
	server := webhook.NewServer(registry, lookup, cfg,
		webhook.WithMetrics(metrics),
		webhook.WithHooks(metrics.Hooks()),
	)
	return &app{t: t, handler: server.Handler(), store: store, metrics: metrics}
}

func newDatabase(script domain.Script) ports.ScriptLookup {
	return memory.NewLookup(map[string]domain.Script{testutils.FromNumber: script})
}

// request simulates a webhook call coming from Twilio.
func (a *app) request(params map[string]string) *httptest.ResponseRecorder {
	a.t.Helper()
	q := url.Values{
		"AccountSid":     {accountSid},
		"ApplicationSid": {applicationSid},
		"CallSid":        {"1"},
		"From":           {testutils.FromNumber},
	}
	for k, v := range params {
		q.Set(k, v)
	}

	req := httptest.NewRequest(http.MethodGet, "/twilio?"+q.Encode(), nil)
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("X-Forwarded-Proto", "https")

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_HelloWorld(t *testing.T) {
	a := newApp(t, newDatabase(domain.Script{domain.Say("Hello world.")}))

	rec := a.request(nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	testutils.AssertXMLContains(t, `
		<Say language="en-GB"
			voice="woman">
			Hello world.
		</Say>
		<Pause length="1"></Pause>
		<Hangup></Hangup>
	`, rec.Body.String())
	assert.Equal(t, 0, a.store.Len(), "completed calls are removed")
}

func TestWebhook_CallDataNotFound(t *testing.T) {
	a := newApp(t, memory.NewLookup(nil))

	rec := a.request(nil)

	require.Equal(t, http.StatusOK, rec.Code)
	testutils.AssertXMLContains(t, `
		<Dial action="/twilio"
			callerId="415-555-1111"
			method="GET"
			timeout="20">
			415-555-2222
		</Dial>
	`, rec.Body.String())
	assert.Equal(t, 0, a.store.Len())
}

func TestWebhook_InvalidRequests(t *testing.T) {
	a := newApp(t, newDatabase(domain.Script{domain.Say("hi")}))

	rec := a.request(map[string]string{"AccountSid": "false", "ApplicationSid": "false"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Plain http is rejected even with valid SIDs.
	req := httptest.NewRequest(http.MethodGet, "/twilio?AccountSid=1&ApplicationSid=2&CallSid=1", nil)
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_SidsFromBody(t *testing.T) {
	a := newApp(t, newDatabase(domain.Script{domain.Say("hi")}))

	body := url.Values{"AccountSid": {accountSid}, "ApplicationSid": {applicationSid}}
	req := httptest.NewRequest(http.MethodPost, "/twilio?CallSid=9&From="+url.QueryEscape(testutils.FromNumber), strings.NewReader(body.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	testutils.AssertXMLContains(t, `<Say language="en-GB" voice="woman">hi</Say>`, rec.Body.String())
}

func TestWebhook_DevelopmentSkipsAuthenticity(t *testing.T) {
	a := newApp(t, newDatabase(domain.Script{domain.Say("hi")}), func(c *webhook.Config) {
		c.Development = true
	})

	req := httptest.NewRequest(http.MethodGet, "/twilio?CallSid=1&From="+url.QueryEscape(testutils.FromNumber), nil)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_MissingCallSid(t *testing.T) {
	a := newApp(t, newDatabase(domain.Script{domain.Say("hi")}))

	rec := a.request(map[string]string{"CallSid": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_SendDigitsAndHangUp(t *testing.T) {
	a := newApp(t, newDatabase(domain.Script{domain.SendDigits("42")}))

	rec := a.request(map[string]string{"From": testutils.FromNumber})

	require.Equal(t, http.StatusOK, rec.Code)
	testutils.AssertXMLContains(t, `
		<Play digits="42"></Play>
		<Pause length="1"></Pause>
		<Hangup></Hangup>
	`, rec.Body.String())
}

func gatherScript() domain.Script {
	return domain.Script{
		domain.GatherDigits(map[string]domain.Script{
			"123":                {domain.Say("You entered 123.")},
			longSequence:         {},
			domain.DefaultBranch: {domain.Say("foo")},
		}),
	}
}

func TestWebhook_GatherDigits(t *testing.T) {
	gather := `<Gather action="/twilio" method="GET" numDigits="21" timeout="20"></Gather>`

	t.Run("Entering a matching sequence", func(t *testing.T) {
		a := newApp(t, newDatabase(gatherScript()))

		rec := a.request(nil)
		require.Equal(t, http.StatusOK, rec.Code)
		testutils.AssertXMLContains(t, gather, rec.Body.String())

		rec = a.request(map[string]string{"Digits": "123"})
		require.Equal(t, http.StatusOK, rec.Code)
		testutils.AssertXMLContains(t, `
			<Say language="en-GB" voice="woman">You entered 123.</Say>
			<Pause length="1"></Pause>
			<Hangup></Hangup>
		`, rec.Body.String())
	})

	t.Run("Not entering a matching sequence", func(t *testing.T) {
		a := newApp(t, newDatabase(gatherScript()))

		rec := a.request(nil)
		require.Equal(t, http.StatusOK, rec.Code)
		testutils.AssertXMLContains(t, gather, rec.Body.String())

		rec = a.request(map[string]string{"Digits": "555"})
		require.Equal(t, http.StatusOK, rec.Code)
		testutils.AssertXMLContains(t, `
			<Say language="en-GB" voice="woman">foo</Say>
			<Pause length="1"></Pause>
			<Hangup></Hangup>
		`, rec.Body.String())
	})
}

func TestWebhook_AnonymousClient(t *testing.T) {
	lookup := memory.NewLookup(map[string]domain.Script{
		testutils.TwilioNumber: {domain.ForwardCall("415-555-9999")},
	})
	a := newApp(t, lookup)

	rec := a.request(map[string]string{"From": webhook.AnonymousClient})

	require.Equal(t, http.StatusOK, rec.Code)
	testutils.AssertXMLContains(t, `callerId="415-555-3333"`, rec.Body.String())
	testutils.AssertXMLContains(t, `415-555-9999</Dial>`, rec.Body.String())
}

func TestWebhook_InvalidDigitsFallBack(t *testing.T) {
	a := newApp(t, newDatabase(gatherScript()))
	a.request(nil)

	rec := a.request(map[string]string{"Digits": "12x"})

	require.Equal(t, http.StatusOK, rec.Code)
	testutils.AssertXMLContains(t, `415-555-2222</Dial>`, rec.Body.String())
	assert.Equal(t, 1, a.store.Len(), "the paused call is kept")
}

func TestWebhook_LookupFailureFallsBack(t *testing.T) {
	var fallbacks []error
	lookup := ports.LookupFunc(func(ctx context.Context, caller string) (domain.Script, error) {
		return nil, errors.New("backend unavailable")
	})
	store := memory.NewStore()
	server := webhook.NewServer(session.NewRegistry(store), lookup, webhook.Config{
		PrimaryPhoneNumber: testutils.PrimaryNumber,
		Development:        true,
	}, webhook.WithHooks(domain.LifecycleHooks{
		OnFallback: func(ctx context.Context, e *domain.FallbackEvent) { fallbacks = append(fallbacks, e.Err) },
	}))

	req := httptest.NewRequest(http.MethodGet, "/twilio?CallSid=CA1&From=a&To=b", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	testutils.AssertXMLContains(t, `<Dial action="/twilio" callerId="a" method="GET" timeout="20">415-555-2222</Dial>`, rec.Body.String())
	require.Len(t, fallbacks, 1)
	var lookupErr *domain.LookupError
	assert.ErrorAs(t, fallbacks[0], &lookupErr)
}

func TestWebhook_ValidationErrorFallsBack(t *testing.T) {
	a := newApp(t, newDatabase(domain.Script{{Command: domain.CommandSay}}))

	rec := a.request(nil)

	require.Equal(t, http.StatusOK, rec.Code)
	testutils.AssertXMLContains(t, `415-555-2222</Dial>`, rec.Body.String())

	metrics := httptest.NewRecorder()
	a.handler.ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metrics.Body.String(), `doorman_fallbacks_total{reason="validation"} 1`)
	assert.Contains(t, metrics.Body.String(), `doorman_turns_total{outcome="fallback"} 1`)
}

func TestWebhook_CustomEndpoint(t *testing.T) {
	a := newApp(t, memory.NewLookup(nil), func(c *webhook.Config) {
		c.Endpoint = "/voice"
	})

	req := httptest.NewRequest(http.MethodGet, "/voice?CallSid=1&AccountSid=1&ApplicationSid=2&From=x", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	testutils.AssertXMLContains(t, `<Dial action="/voice"`, rec.Body.String())
}

func TestHealthAndAssets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greeting.mp3"), []byte("ID3"), 0644))

	a := newApp(t, memory.NewLookup(nil), func(c *webhook.Config) {
		c.AssetPath = dir
	})

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/greeting.mp3", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ID3", rec.Body.String())
}
