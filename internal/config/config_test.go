package config

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("RESOLUTION_AUTO_RESOLVE_THRESHOLD", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Engine.AutoResolveThreshold)
	assert.Equal(t, 3, cfg.Analysis.MinClusterSize)
	assert.Equal(t, 30*24*time.Hour, cfg.Analysis.Lookback())
	assert.Equal(t, "redis", cfg.Lock.Backend)
	assert.False(t, cfg.LLM.Enabled())
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("RESOLUTION_AUTO_RESOLVE_THRESHOLD", "0.8")
	t.Setenv("KB_CLUSTER_MIN_SIZE", "5")
	t.Setenv("RESOLUTION_UPSTREAM_TIMEOUT", "3s")
	t.Setenv("LOCK_BACKEND", "LOCAL")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Engine.AutoResolveThreshold)
	assert.Equal(t, 5, cfg.Analysis.MinClusterSize)
	assert.Equal(t, 3*time.Second, cfg.Engine.UpstreamTimeout)
	assert.Equal(t, "local", cfg.Lock.Backend)
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	t.Setenv("RESOLUTION_GUIDED_FLOOR", "0.9")
	t.Setenv("RESOLUTION_MATCH_THRESHOLD", "0.5")

	_, err := Load()
	assert.Error(t, err)
}

func TestWithOverrides(t *testing.T) {
	auto := 0.9
	size := 7
	engine := EngineConfig{AutoResolveThreshold: 0.7, MatchThreshold: 0.6}
	analysis := AnalysisConfig{MinClusterSize: 3, SimilarityThreshold: 0.85}
	settings := &domain.OrgSettings{AutoResolveThreshold: &auto, MinClusterSize: &size}

	assert.Equal(t, 0.9, engine.WithOverrides(settings).AutoResolveThreshold)
	assert.Equal(t, 0.6, engine.WithOverrides(settings).MatchThreshold)
	assert.Equal(t, 7, analysis.WithOverrides(settings).MinClusterSize)
	assert.Equal(t, engine, engine.WithOverrides(nil))
}

func TestWithOverridesIgnoresOutOfRangeValues(t *testing.T) {
	engine := EngineConfig{AutoResolveThreshold: 0.7, MatchThreshold: 0.6, GuidedFloor: 0.35}
	analysis := AnalysisConfig{MinClusterSize: 3, SimilarityThreshold: 0.85}

	for _, v := range []float64{0, -0.2, 1.5, math.NaN()} {
		bad := v
		size := 1
		settings := &domain.OrgSettings{
			AutoResolveThreshold: &bad,
			MatchThreshold:       &bad,
			SimilarityThreshold:  &bad,
			MinClusterSize:       &size,
		}
		assert.Equal(t, engine, engine.WithOverrides(settings), "value %v", v)
		assert.Equal(t, analysis, analysis.WithOverrides(settings), "value %v", v)
	}

	belowFloor := 0.2
	assert.Equal(t, 0.6, engine.WithOverrides(&domain.OrgSettings{MatchThreshold: &belowFloor}).MatchThreshold)

	one := 1.0
	assert.Equal(t, 1.0, engine.WithOverrides(&domain.OrgSettings{AutoResolveThreshold: &one}).AutoResolveThreshold)
}
