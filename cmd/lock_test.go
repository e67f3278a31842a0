package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock_Exclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := acquireLock(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, lockFileName))

	_, err = acquireLock(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another review-scout run")

	require.NoError(t, first.Unlock())
	second, err := acquireLock(dir)
	require.NoError(t, err)
	require.NoError(t, second.Unlock())
}
