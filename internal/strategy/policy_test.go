package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyExcluded(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.Excluded("www.yelp.com"))
	assert.True(t, p.Excluded("m.yelp.com"))
	assert.True(t, p.Excluded("X.com"))
	assert.False(t, p.Excluded("fox.com"))
	assert.False(t, p.Excluded("aceplumbing.com"))

	var zero Policy
	assert.True(t, zero.Excluded("facebook.com"))
}

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPolicy(t *testing.T) {
	path := writePolicy(t, `
policy:
  accept_toll_free: false
  max_extra_pages: 4
  excluded_domains: [LocalDirectory.com]
  junk_email_domains: [mailinator.com]
`)

	p, err := LoadPolicy(path, DefaultPolicy())
	require.NoError(t, err)
	assert.False(t, p.AcceptTollFree)
	assert.Equal(t, 4, p.MaxExtraPages)
	assert.True(t, p.Excluded("www.localdirectory.com"))
	assert.True(t, p.Excluded("yelp.com"))
	assert.False(t, p.usableEmail("joe@mailinator.com"))
	assert.False(t, p.usableEmail("joe@example.com"))
}

func TestLoadPolicy_Defaults(t *testing.T) {
	p, err := LoadPolicy(writePolicy(t, "policy: {}\n"), DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, p.AcceptTollFree)
	assert.Equal(t, 2, p.MaxExtraPages)
}

func TestLoadPolicy_KeepsBaseForUnsetKeys(t *testing.T) {
	base := Policy{AcceptTollFree: false, MaxExtraPages: 5}

	p, err := LoadPolicy(writePolicy(t, "policy:\n  excluded_domains: [localdirectory.com]\n"), base)
	require.NoError(t, err)
	assert.False(t, p.AcceptTollFree)
	assert.Equal(t, 5, p.MaxExtraPages)
	assert.True(t, p.Excluded("localdirectory.com"))

	p, err = LoadPolicy(writePolicy(t, "policy:\n  max_extra_pages: 1\n"), base)
	require.NoError(t, err)
	assert.False(t, p.AcceptTollFree)
	assert.Equal(t, 1, p.MaxExtraPages)
}

func TestLoadPolicy_Errors(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"), DefaultPolicy())
	assert.Error(t, err)

	_, err = LoadPolicy(writePolicy(t, "policy:\n  max_extra_pages: -1\n"), DefaultPolicy())
	assert.Error(t, err)

	_, err = LoadPolicy(writePolicy(t, "policy: [not, a, map]\n"), DefaultPolicy())
	assert.Error(t, err)
}
