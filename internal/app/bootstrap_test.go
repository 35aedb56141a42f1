// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"log-agent/internal/logsource"
	"log-agent/internal/model/embedding"
	"log-agent/pkg/config"
	"log-agent/pkg/errors"
)

type staticSource struct{ events []logsource.Event }

func (s *staticSource) Pull(_ context.Context, start int64) ([]logsource.Event, error) {
	var out []logsource.Event
	for _, e := range s.events {
		if e.Timestamp >= start {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *staticSource) Name() string { return "static" }

func testConfig() *config.Config {
	return &config.Config{
		Source: config.SourceConfig{LookbackMinutes: 10},
		Storage: config.StorageConfig{
			LogFile:    config.LogFileConfig{Dir: "/data", File: "log.txt"},
			Checkpoint: config.CheckpointConfig{Type: "file", File: "last_ts.txt"},
			Vector:     config.VectorConfig{Type: "memory", Collection: "logs"},
		},
		Query:   config.QueryConfig{TopK: 5, SummaryLines: 50, ErrorLimit: 50},
		Secrets: config.SecretsConfig{Provider: "memory"},
		Log:     config.LogConfig{Level: "error"},
	}
}

func TestNewBootstrap_NoModel(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	now := time.Now().UnixMilli()
	src := &staticSource{events: []logsource.Event{
		{Timestamp: now - 1000, Stream: "api", Message: "ERROR db timeout"},
	}}
	b, err := NewBootstrap(ctx, testConfig(), Options{Fs: fs, Source: src})
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.Agent)
	assert.Len(t, b.Registry.List(), 5)

	rep, err := b.Ingest.PullAndSave(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Ingested)

	errs, err := b.Query.ErrorLogs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, errs.Count)

	_, err = b.Query.SummaryLogs(ctx)
	assert.True(t, errors.Is(err, errors.ErrUpstreamUnavailable))
}

func TestNewBootstrap_SecretRef(t *testing.T) {
	cfg := testConfig()
	cfg.API.Middleware.LoginToken = "secret://missing"
	_, err := NewBootstrap(context.Background(), cfg, Options{Fs: afero.NewMemMapFs(), Source: &staticSource{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login_token")
}

func TestParseDefaultKey(t *testing.T) {
	p, m, err := parseDefaultKey("openai.gpt_4o_mini")
	require.NoError(t, err)
	assert.Equal(t, "openai", p)
	assert.Equal(t, "gpt_4o_mini", m)

	for _, bad := range []string{"", "openai", ".x", "x."} {
		_, _, err := parseDefaultKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewEmbedderFromConfig(t *testing.T) {
	emb, dim, err := NewEmbedderFromConfig(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, &embedding.HashEmbedder{}, emb)
	assert.Equal(t, hashDimension, dim)

	cfg := &config.Config{Model: config.ModelConfig{
		Defaults: config.DefaultsConfig{Embedding: "openai.small"},
		Embedding: config.EmbeddingConfig{Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "sk-test", Models: map[string]config.ModelInfo{"small": {Name: "text-embedding-3-small", Dimension: 1536}}},
		}},
	}}
	emb, dim, err = NewEmbedderFromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &embedding.OpenAIEmbedder{}, emb)
	assert.Equal(t, 1536, dim)

	cfg.Model.Defaults.Embedding = "openai.large"
	_, _, err = NewEmbedderFromConfig(cfg)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "large"))
}

func TestNewLLMClientFromConfig(t *testing.T) {
	c, err := NewLLMClientFromConfig(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, c)

	cfg := &config.Config{Model: config.ModelConfig{
		Defaults: config.DefaultsConfig{LLM: "openai.mini"},
		LLM: config.LLMConfig{Providers: map[string]config.ProviderConfig{
			"openai": {Models: map[string]config.ModelInfo{"mini": {Name: "gpt-4o-mini"}}},
		}},
	}}
	c, err = NewLLMClientFromConfig(cfg)
	require.NoError(t, err)
	assert.Nil(t, c, "missing api key disables the client")

	cfg.Model.Defaults.LLM = "openai.large"
	_, err = NewLLMClientFromConfig(cfg)
	require.Error(t, err)

	cfg.Model.Defaults.LLM = "openai.mini"
	cfg.Model.LLM.Providers["openai"] = config.ProviderConfig{APIKey: "sk-test", Models: cfg.Model.LLM.Providers["openai"].Models}
	c, err = NewLLMClientFromConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "gpt-4o-mini", c.Model())
}
