package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := NewOptions()

	assert.NotNil(t, opts.Ctx)
	assert.Equal(t, 5*time.Minute, opts.StageTimeout)
	assert.Equal(t, "gpt-4o", opts.ChatModel)
	assert.Equal(t, float64(400), opts.ColumnSpacing)
	assert.Equal(t, float64(200), opts.VideoRowSpacing)
	assert.Equal(t, float64(250), opts.StoryboardRowSpacing)
	assert.False(t, opts.MemStore)
	assert.Nil(t, opts.PostgresConfig)
	assert.Equal(t, "", opts.ImageModel)
}

func TestWithPostgresConfig(t *testing.T) {
	config := &PostgresConfig{
		Host:     "dbhost",
		Port:     5433,
		User:     "user",
		Password: "pass",
		Database: "db",
		SSLMode:  "require",
	}

	opts := NewOptions()
	WithPostgresConfig(config)(opts)

	assert.NotNil(t, opts.PostgresConfig)
	assert.Equal(t, "dbhost", opts.PostgresConfig.Host)
	assert.Equal(t, 5433, opts.PostgresConfig.Port)
	assert.Equal(t, "require", opts.PostgresConfig.SSLMode)
}

func TestMultipleOptions(t *testing.T) {
	opts := NewOptions()

	WithStageTimeout(time.Second)(opts)
	WithChatModel("gpt-4o-mini")(opts)
	WithImageModel("doubao-seedream-4-5-251128", "2048x2048")(opts)
	WithLayout(300, 150, 180)(opts)
	EnableMemStore()(opts)

	assert.Equal(t, time.Second, opts.StageTimeout)
	assert.Equal(t, "gpt-4o-mini", opts.ChatModel)
	assert.Equal(t, "doubao-seedream-4-5-251128", opts.ImageModel)
	assert.Equal(t, "2048x2048", opts.ImageSize)
	assert.Equal(t, float64(300), opts.ColumnSpacing)
	assert.Equal(t, float64(180), opts.StoryboardRowSpacing)
	assert.True(t, opts.MemStore)
}
