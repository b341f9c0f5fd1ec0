package setup

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gc-eligibility-server/internal/config"
	"github.com/gc-eligibility-server/internal/domain"
)

func testManager(t *testing.T) *config.Manager {
	t.Helper()
	manager, err := config.NewManager(t.TempDir())
	require.NoError(t, err)
	manager.GetConfig().Feedback.SQLitePath = filepath.Join(t.TempDir(), "feedback.db")
	return manager
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestBuild_Defaults(t *testing.T) {
	components, err := Build(context.Background(), testManager(t), quietLogger())
	require.NoError(t, err)
	defer components.Close()

	assert.Nil(t, components.Extraction)
	assert.Equal(t, "disabled", components.BreakerState())
	assert.NotNil(t, components.Documents)
	assert.NotNil(t, components.Feedback)

	result, err := components.Assessor.Assess(context.Background(), "G2P2, 29 years old, BMI 22", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AI_DISABLED, result.AIOutcome)
}

func TestBuild_WithExtraction(t *testing.T) {
	manager := testManager(t)
	manager.GetConfig().Extraction.Enabled = true
	manager.GetConfig().Extraction.BaseURL = "http://127.0.0.1:1"

	components, err := Build(context.Background(), manager, quietLogger())
	require.NoError(t, err)
	defer components.Close()

	require.NotNil(t, components.Extraction)
	assert.Equal(t, "closed", components.BreakerState())
}

func TestBuild_UnknownFeedbackDriver(t *testing.T) {
	manager := testManager(t)
	manager.GetConfig().Feedback.Driver = "mysql"

	_, err := Build(context.Background(), manager, quietLogger())

	assert.Error(t, err)
}
