package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/proenglish/go_proenglish/internal/apiclient"
	"github.com/proenglish/go_proenglish/internal/backend"
	"github.com/proenglish/go_proenglish/internal/config"
	"github.com/proenglish/go_proenglish/internal/model"
	"github.com/proenglish/go_proenglish/internal/payment"
	"github.com/proenglish/go_proenglish/internal/practice"
	"github.com/proenglish/go_proenglish/internal/querycache"
	"github.com/proenglish/go_proenglish/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(dataFile string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeout: time.Second},
		Backend: config.BackendConfig{
			Type:            backend.TypeMemory,
			Timeout:         time.Second,
			DataFilePath:    dataFile,
			PersistInterval: time.Hour,
		},
		Cache:    *querycache.DefaultConfig(),
		Payment:  config.PaymentConfig{Provider: payment.ProviderMemory, Currency: "AOA", AutoSucceed: true},
		Auth:     config.AuthConfig{JWTSecret: "secret", Issuer: "proenglish", TokenTTL: time.Hour},
		Checkout: config.CheckoutConfig{SessionTTL: time.Minute, MaxSessions: 10},
		Practice: config.PracticeConfig{MaxHearts: 5, RefillSpec: practice.DefaultRefillSpec, RefillTimeout: time.Second, LeaderboardSize: 10},
		Misc:     config.MiscConfig{LogLevel: "info", GinMode: "test"},
	}
}

func writeDataFile(t *testing.T) string {
	t.Helper()
	doc := repository.DataDocument{
		Users:   []model.UserProfile{{ID: "u1", Name: "Ana", Email: "ana@example.ao", Role: "student"}},
		Courses: []model.Course{{ID: "c1", Title: "English A1", Level: model.LevelA1, Price: decimal.NewFromInt(15000), Currency: "AOA", Published: true}},
		Progress: []model.StudentProgress{
			{UserID: "u1", UserName: "Ana", Hearts: 5, CompletedChallenges: []string{}},
		},
	}
	path := filepath.Join(t.TempDir(), "data.json")
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestNew_RequiresDependencies(t *testing.T) {
	cfg := testConfig("unused.json")
	b := backend.NewMemoryBackend(repository.DataDocument{}, practice.NewRules(5))
	p := payment.NewMemoryProvider(true)

	_, err := New(nil, nil, b, p)
	assert.Error(t, err)
	_, err = New(cfg, nil, nil, p)
	assert.Error(t, err)
	_, err = New(cfg, nil, b, nil)
	assert.Error(t, err)
	_, err = New(cfg, nil, b, p)
	assert.Error(t, err, "memory backend needs a repository to persist to")
}

func TestBuild_HTTPBackendHasNoRepository(t *testing.T) {
	cfg := testConfig("")
	cfg.Backend.Type = backend.TypeHTTP
	cfg.Backend.BaseURL = "http://127.0.0.1:1/api/v1"

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Shutdown()

	assert.Nil(t, a.Repo)
	assert.IsType(t, &backend.HTTPBackend{}, a.Backend)
	assert.NotNil(t, a.Wizard)
	assert.NotNil(t, a.Dashboards)
}

func TestBuild_MissingDataFile(t *testing.T) {
	_, err := Build(context.Background(), testConfig(filepath.Join(t.TempDir(), "missing.json")))
	assert.Error(t, err)
}

func TestApp_ShutdownFlushesMemoryBackend(t *testing.T) {
	path := writeDataFile(t)
	a, err := Build(context.Background(), testConfig(path))
	require.NoError(t, err)
	require.NoError(t, a.StartWatchers())

	got, err := querycache.Mutate(context.Background(), a.Cache, a.API.Student.ConsumeHeart, apiclient.HeartRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 4, got.Hearts)

	a.Shutdown()

	doc, err := a.Repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Progress, 1)
	assert.Equal(t, 4, doc.Progress[0].Hearts)
	assert.Positive(t, doc.Metadata.LastUpdate)
}

func TestApp_ShutdownIsIdempotent(t *testing.T) {
	a, err := Build(context.Background(), testConfig(writeDataFile(t)))
	require.NoError(t, err)
	a.Shutdown()
	a.Shutdown()

	var nilApp *App
	nilApp.Shutdown()
}

func TestApp_RefillRunsThroughCache(t *testing.T) {
	a, err := Build(context.Background(), testConfig(writeDataFile(t)))
	require.NoError(t, err)
	defer a.Shutdown()

	_, err = a.Backend.ConsumeHeart(context.Background(), "u1")
	require.NoError(t, err)

	n, err := a.Refill.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p, err := a.Backend.GetProgress(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Hearts)
}

func TestApp_ReloadRefreshesSubscribers(t *testing.T) {
	a, err := Build(context.Background(), testConfig(writeDataFile(t)))
	require.NoError(t, err)
	defer a.Shutdown()

	sub, err := querycache.Subscribe(a.Cache, a.API.Student.Progress, "u1")
	require.NoError(t, err)
	defer sub.Unsubscribe()
	_, err = sub.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, sub.Current().Data.Hearts)

	mem, ok := a.Backend.(*backend.MemoryBackend)
	require.True(t, ok)
	doc, err := mem.Snapshot()
	require.NoError(t, err)
	doc.Progress[0].Hearts = 1
	doc.Metadata.LastUpdate = time.Now().UnixMilli()
	require.NoError(t, mem.Replace(doc))

	require.Eventually(t, func() bool { return sub.Current().Data.Hearts == 1 }, 2*time.Second, 5*time.Millisecond)
}
