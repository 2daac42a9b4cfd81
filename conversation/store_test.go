package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SeedAppendsPersonaPair(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Seed("prime", "ack"))

	turns := s.Snapshot()
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "prime", turns[0].Text())
	assert.Equal(t, RoleModel, turns[1].Role)
	assert.Equal(t, "ack", turns[1].Text())
}

func TestStore_SeedTwiceFails(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Seed("prime", "ack"))
	assert.ErrorIs(t, s.Seed("again", "again"), ErrAlreadySeeded)
	assert.Equal(t, 2, s.Len())
}

func TestStore_PreservesInsertionOrder(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Seed("prime", "ack"))
	s.AppendUserTurn("Draw a red circle")
	s.AppendModelTurn([]Segment{
		TextSegment{Text: "Here you go:"},
		ImageSegment{Path: "out/image_1.png", MIMEType: "image/png"},
	})

	turns := s.Snapshot()
	require.Len(t, turns, 4)
	assert.Equal(t, "Draw a red circle", turns[2].Text())
	assert.Equal(t, []ImageSegment{{Path: "out/image_1.png", MIMEType: "image/png"}}, turns[3].Images())
}

func TestStore_TurnsAreImmutableAfterAppend(t *testing.T) {
	s := NewStore()
	segs := []Segment{TextSegment{Text: "original"}}
	s.AppendModelTurn(segs)

	segs[0] = TextSegment{Text: "mutated by caller"}
	snap := s.Snapshot()
	snap[0].Segments[0] = TextSegment{Text: "mutated by reader"}

	assert.Equal(t, "original", s.Snapshot()[0].Text())
}

func TestStore_SnapshotOfEmptyStore(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.Snapshot())
	assert.Equal(t, 0, s.Len())
}
