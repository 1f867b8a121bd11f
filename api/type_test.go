package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.LogRotate = LogRotateDaily
	cfg.LogMaxSize = 0
	assert.NoError(t, cfg.Validate())

	cfg.LogRotate = LogRotateSize
	assert.Error(t, cfg.Validate())

	cfg.LogRotate = "hourly"
	assert.Error(t, cfg.Validate())
}
