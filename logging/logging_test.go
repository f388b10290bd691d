package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"preader/logging"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevel(t *testing.T) {
	closer, err := logging.Setup(logging.Options{Level: "debug"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestSetupInvalidLevel(t *testing.T) {
	_, err := logging.Setup(logging.Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestSetupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preader.log")

	closer, err := logging.Setup(logging.Options{Level: "info", File: path})
	require.NoError(t, err)

	log.WithFields(log.Fields{"feed": 1}).Info("Written to file")
	require.NoError(t, closer.Close())
	log.SetOutput(os.Stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Written to file")
	assert.Contains(t, string(data), "feed=1")
}
