package blob_test

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/store/blob"
)

func TestFSStoreRoundTrip(t *testing.T) {
	s, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)

	n, err := s.Put("abc", strings.NewReader("hello"), 10)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	f, err := s.Open("abc")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "hello", string(body))

	require.NoError(t, s.Delete("abc"))
	require.NoError(t, s.Delete("abc"))
	_, err = s.Open("abc")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFSStoreRejectsOversizedBody(t *testing.T) {
	s, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Put("big", strings.NewReader("0123456789"), 4)
	assert.ErrorIs(t, err, blob.ErrTooLarge)
	_, err = s.Open("big")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFSStoreRejectsTraversal(t *testing.T) {
	s, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Put("../escape", strings.NewReader("x"), 10)
	assert.Error(t, err)
	assert.Error(t, s.Delete("a/b"))
}
