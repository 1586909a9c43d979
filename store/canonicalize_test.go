package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURLs(t *testing.T) {
	text := "check this out https://example.com/a and also http://foo.org/b?x=1 neat"
	got := ExtractURLs(text)
	assert.Equal(t, []string{"https://example.com/a", "http://foo.org/b?x=1"}, got)
}

func TestCanonicalizeURL_StripsTrackingParams(t *testing.T) {
	got, err := CanonicalizeURL("HTTPS://Example.com/Path/?utm_source=tg&gclid=abc&keep=1")
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/Path?keep=1", got)
}

func TestShouldArchiveURL_ExcludesLoopbackAndInternal(t *testing.T) {
	assert.False(t, ShouldArchiveURL("http://localhost:8080/x"))
	assert.False(t, ShouldArchiveURL("http://127.0.0.1/x"))
	assert.False(t, ShouldArchiveURL("http://service.internal/x"))
	assert.False(t, ShouldArchiveURL("http://box.local/x"))
	assert.True(t, ShouldArchiveURL("https://example.com/x"))
}

func TestIsValidURL(t *testing.T) {
	assert.True(t, IsValidURL("https://example.com"))
	assert.False(t, IsValidURL("not a url"))
	assert.False(t, IsValidURL("/relative/path"))
}
