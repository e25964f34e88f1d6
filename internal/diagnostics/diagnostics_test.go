package diagnostics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "Success", Success.String())
	assert.Equal(t, "NotFound", NotFound.String())
	assert.Equal(t, "Unreachable", Unreachable.String())
	assert.Equal(t, "Unknown", Outcome(99).String())
}

func TestFlattenOrdersOuterToInner(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inner := New(Success, "origin", "a/b", now, nil)
	outer := New(Success, "cache", "a/b", now.Add(time.Second), inner)

	flat := outer.Flatten()
	require.Len(t, flat, 2)
	assert.Equal(t, "cache", flat[0].StoreName)
	assert.Equal(t, "origin", flat[1].StoreName)
}

func TestFlattenSingleNode(t *testing.T) {
	d := New(NotFound, "only", "", time.Now(), nil)
	assert.Equal(t, []*Diagnostics{d}, d.Flatten())
}

func TestFlattenNilReceiver(t *testing.T) {
	var d *Diagnostics
	assert.Nil(t, d.Flatten())
}
