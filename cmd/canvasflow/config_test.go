package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warriorguo/canvasflow/llm"
	"github.com/warriorguo/canvasflow/types"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "canvasflow.yaml")
	require.Nil(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "log:\n  level: debug\n"))
	require.Nil(t, err)

	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, ":8080", config.HTTP.Addr)
	assert.Equal(t, providerHeuristic, config.Chat.Provider)
	assert.Equal(t, "gpt-4o", config.Chat.Model)
	assert.Equal(t, 5*time.Minute, config.Workflow.StageTimeout)
	assert.Equal(t, storeMemory, config.Store.Type)

	_, ok := config.completer().(*llm.Heuristic)
	assert.True(t, ok)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
chat:
  provider: openai
  api_key: from-file
  model: gpt-4o-mini
workflow:
  stage_timeout: 90s
  image_model: flux
store:
  type: postgres
  dsn: "host=db port=5433 user=canvas password=secret dbname=records sslmode=disable"
`)
	t.Setenv("CANVASFLOW_CHAT_API_KEY", "from-env")

	config, err := LoadConfig(path)
	require.Nil(t, err)
	assert.Equal(t, "from-env", config.Chat.APIKey)
	assert.Equal(t, "gpt-4o-mini", config.Chat.Model)
	assert.Equal(t, 90*time.Second, config.Workflow.StageTimeout)

	_, ok := config.completer().(*llm.OpenAIClient)
	assert.True(t, ok)

	opts, err := config.options()
	require.Nil(t, err)
	options := types.NewOptions()
	for _, opt := range opts {
		opt(options)
	}
	assert.Equal(t, "gpt-4o-mini", options.ChatModel)
	assert.Equal(t, "flux", options.ImageModel)
	require.NotNil(t, options.PostgresConfig)
	assert.Equal(t, "db", options.PostgresConfig.Host)
	assert.Equal(t, 5433, options.PostgresConfig.Port)
	assert.Equal(t, "records", options.PostgresConfig.Database)
	assert.False(t, options.MemStore)
}

func TestConfigValidate(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "chat:\n  provider: openai\n"))
	assert.True(t, errors.IsNotValid(err))

	_, err = LoadConfig(writeConfig(t, "chat:\n  provider: unknown\n"))
	assert.True(t, errors.IsNotValid(err))

	_, err = LoadConfig(writeConfig(t, "store:\n  type: postgres\n"))
	assert.True(t, errors.IsNotValid(err))

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)
}

func TestSetupLogging(t *testing.T) {
	config := &Config{}
	config.Log.Level = "verbose"
	assert.NotNil(t, config.setupLogging())

	config.Log.Level = "info"
	config.Log.Format = "xml"
	assert.True(t, errors.IsNotValid(config.setupLogging()))

	config.Log.Format = "json"
	assert.Nil(t, config.setupLogging())
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"version"})
	require.Nil(t, root.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func TestRunCommand(t *testing.T) {
	path := writeConfig(t, "log:\n  level: error\nsimulator:\n  latency: 5ms\n")
	dot := filepath.Join(t.TempDir(), "run.dot")

	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"--config", path, "run", "画一只在草地上奔跑的狗", "--dot", dot})
	require.Nil(t, root.Execute())

	assert.Contains(t, out.String(), `"workflow_type": "text_to_image"`)
	b, err := os.ReadFile(dot)
	require.Nil(t, err)
	assert.Contains(t, string(b), "digraph")
}
