package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, enabled map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core), enabled)
	t.Cleanup(func() { SetLogger(nil, nil) })
	return logs
}

func TestAllCategoriesLog(t *testing.T) {
	logs := observe(t, nil)

	for _, cat := range AllCategories {
		require.True(t, IsCategoryEnabled(cat), "category %s", cat)
		l := Get(cat)
		l.Info("info for %s", cat)
		l.Debug("debug for %s", cat)
		l.Warn("warn for %s", cat)
		l.Error("error for %s", cat)
	}

	assert.Equal(t, 4*len(AllCategories), logs.Len())
	named := logs.FilterLoggerName(string(CategoryRefData)).All()
	require.Len(t, named, 4)
	assert.Equal(t, "info for refdata", named[0].Message)
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t, map[string]bool{"placement": false, "scoring": true})

	assert.False(t, IsCategoryEnabled(CategoryPlacement))
	assert.True(t, IsCategoryEnabled(CategoryScoring))
	assert.True(t, IsCategoryEnabled(CategoryEngine), "unlisted categories stay enabled")

	PlacementDebug("hidden %d", 1)
	ScoringDebug("shown %d", 2)
	EngineDebug("shown %d", 3)

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "shown 2", logs.All()[0].Message)
}

func TestNoopBeforeInitialize(t *testing.T) {
	SetLogger(nil, nil)
	assert.NotPanics(t, func() {
		Get(CategoryBoot).Info("nothing %s", "here")
		Get(CategoryBoot).Infow("nothing", "k", "v")
		Sync()
	})
}

func TestStructuredFields(t *testing.T) {
	logs := observe(t, nil)

	Get(CategoryEngine).With("strategy", "placements").Infow("classified", "primary", "Lyra")

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "placements", ctx["strategy"])
	assert.Equal(t, "Lyra", ctx["primary"])
	assert.Equal(t, "engine", entries[0].LoggerName)
}

func TestAuditEvents(t *testing.T) {
	logs := observe(t, nil)

	AuditWithRequest("batch-1").Classified("weights", "abc", "def", "primary", "Pleiades", 3*time.Millisecond)
	Audit().SnapshotRejected(errors.New("bad weight"))
	Audit().BatchComplete("rules", 5, time.Second, nil)

	entries := logs.FilterLoggerName("audit").All()
	require.Len(t, entries, 3)

	first := entries[0].ContextMap()
	assert.Equal(t, "classify", first["event"])
	assert.Equal(t, "batch-1", first["req"])
	assert.Equal(t, "Pleiades", first["primary"])
	assert.Equal(t, true, first["success"])

	second := entries[1].ContextMap()
	assert.Equal(t, "snapshot_reject", second["event"])
	assert.Equal(t, "bad weight", second["error"])
	assert.Equal(t, false, second["success"])
	_, hasPrimary := second["primary"]
	assert.False(t, hasPrimary)

	assert.Equal(t, int64(5), entries[2].ContextMap()["count"])
}

func TestInitializeWritesFile(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil, nil) })
	path := filepath.Join(t.TempDir(), "sorter.log")

	require.NoError(t, Initialize(Config{Level: "debug", Format: "json", Output: path}))
	RefDataDebug("loaded %d rules", 7)
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger":"refdata"`)
	assert.Contains(t, string(data), "loaded 7 rules")
	assert.Contains(t, string(data), "logging initialized")
}

func TestInitializeRejectsBadConfig(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil, nil) })
	assert.Error(t, Initialize(Config{Level: "loud"}))
	assert.Error(t, Initialize(Config{Format: "xml"}))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestConcurrentGet(t *testing.T) {
	logs := observe(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cat := AllCategories[i%len(AllCategories)]
			Get(cat).Info("goroutine %d", i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, logs.Len())
	for _, e := range logs.All() {
		assert.True(t, strings.HasPrefix(e.Message, "goroutine "))
	}
}
