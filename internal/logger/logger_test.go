package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"", "development", "production"} {
		log, err := New(mode)
		require.NoError(t, err, "mode %q", mode)
		log.With("component", "test").Debug("hello", "k", 1)
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New("verbose")
	assert.Error(t, err)
}
