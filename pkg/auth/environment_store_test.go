package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentStoreLoad(t *testing.T) {
	t.Setenv("TADCATCH_EMAIL", "parent@example.com")
	t.Setenv("TADCATCH_PASSWORD", "hunter2")

	store := NewEnvironmentStore()

	creds, err := store.Load("parent@example.com")
	require.NoError(t, err)
	assert.Equal(t, "parent@example.com", creds.Email)
	assert.Equal(t, "hunter2", creds.Password)

	// Any-account lookup works with an empty email.
	creds, err = store.Load("")
	require.NoError(t, err)
	assert.Equal(t, "parent@example.com", creds.Email)

	// Mismatched email is treated as missing.
	_, err = store.Load("other@example.com")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEnvironmentStoreMissing(t *testing.T) {
	t.Setenv("TADCATCH_EMAIL", "")
	t.Setenv("TADCATCH_PASSWORD", "")

	store := NewEnvironmentStore()

	_, err := store.Load("parent@example.com")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	emails, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, emails)
}

func TestEnvironmentStoreReadOnly(t *testing.T) {
	store := NewEnvironmentStore()
	assert.Error(t, store.Save(&Credentials{Email: "a@b.c", Password: "x"}))
	assert.ErrorIs(t, store.Delete("a@b.c"), ErrCredentialsNotFound)
}
