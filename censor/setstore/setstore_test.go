package setstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadFromFileJSON(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemSetStore()
	assert.NoError(s.LoadFromFileJSON("testdata/sets.json"))

	ok, err := s.InSet(ctx, SetBlacklist, "10001")
	assert.NoError(err)
	assert.True(ok)
	ok, err = s.InSet(ctx, SetBlacklist, "")
	assert.NoError(err)
	assert.False(ok)
	ok, err = s.InSet(ctx, "unknown-set", "10001")
	assert.NoError(err)
	assert.False(ok)

	words, err := s.Members(ctx, SetSensitiveWords)
	assert.NoError(err)
	assert.Equal([]string{"bar&baz", "foo"}, words)

	empty, err := s.Members(ctx, "unknown-set")
	assert.NoError(err)
	assert.Empty(empty)

	s.Add(SetBlacklist, "10003")
	ids, err := s.Members(ctx, SetBlacklist)
	assert.NoError(err)
	assert.Equal([]string{"10001", "10002", "10003"}, ids)

	assert.Error(s.LoadFromFileJSON("testdata/missing.json"))
}
