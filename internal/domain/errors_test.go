package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("unknown broker %q", "ANGEL")
	assert.Equal(t, `configuration error: unknown broker "ANGEL"`, err.Error())

	wrapped := fmt.Errorf("load accounts: %w", err)
	assert.True(t, IsConfigurationError(wrapped))
	assert.False(t, IsDataRetrievalError(wrapped))

	inner := errors.New("bad yaml")
	withCause := &ConfigurationError{Reason: "allocation params", Err: inner}
	assert.ErrorIs(t, withCause, inner)
	assert.Contains(t, withCause.Error(), "bad yaml")
}

func TestDataRetrievalError(t *testing.T) {
	cause := errors.New("HTTP 403")
	err := &DataRetrievalError{Attempts: 3, Err: cause}

	assert.Equal(t, "snapshot retrieval failed after 3 attempts: HTTP 403", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsDataRetrievalError(fmt.Errorf("run: %w", err)))
}
