package studio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseContentType(t *testing.T) {
	t.Parallel()

	got, err := ParseContentType("  YouTube ")
	require.NoError(t, err)
	require.Equal(t, ContentYouTube, got)

	_, err = ParseContentType("tiktok")
	require.ErrorIs(t, err, ErrUnknownContentType)
}

func TestContentTypesReturnsCopy(t *testing.T) {
	t.Parallel()

	keys := ContentTypes()
	require.Equal(t, []ContentType{ContentTitle, ContentThumbnail, ContentFacebook, ContentYouTube}, keys)
	keys[0] = "mutated"
	require.Equal(t, ContentTitle, ContentTypes()[0])
}

// TestSplitItemsStripsNumbering mirrors how list outputs are rendered as cards.
func TestSplitItemsStripsNumbering(t *testing.T) {
	t.Parallel()

	text := "1. প্রথম শিরোনাম\n\n2) দ্বিতীয়\n   \n10.   দশম  \nno number"
	require.Equal(t, []string{"প্রথম শিরোনাম", "দ্বিতীয়", "দশম", "no number"}, SplitItems(text))
	require.Empty(t, SplitItems(""))

	job := ContentJob{Key: ContentThumbnail, Result: "1. এক\n2. দুই"}
	require.Equal(t, []string{"এক", "দুই"}, job.Items())
	require.True(t, ContentThumbnail.ListOutput())
	require.False(t, ContentFacebook.ListOutput())
}

func TestSelectionDefaultsToAll(t *testing.T) {
	t.Parallel()

	sel := NewSelection()
	require.Equal(t, ContentTypes(), sel.Keys())

	selected, err := sel.Toggle(ContentThumbnail)
	require.NoError(t, err)
	require.False(t, selected)
	require.Equal(t, []ContentType{ContentTitle, ContentFacebook, ContentYouTube}, sel.Keys())

	selected, err = sel.Toggle(ContentThumbnail)
	require.NoError(t, err)
	require.True(t, selected)
	require.Equal(t, ContentTypes(), sel.Keys())
}

func TestSelectionSetRejectsUnknown(t *testing.T) {
	t.Parallel()

	sel := NewSelection()
	require.ErrorIs(t, sel.Set([]ContentType{ContentTitle, "bogus"}), ErrUnknownContentType)
	require.Equal(t, ContentTypes(), sel.Keys())

	require.NoError(t, sel.Set([]ContentType{ContentYouTube, ContentTitle, ContentTitle}))
	require.Equal(t, []ContentType{ContentTitle, ContentYouTube}, sel.Keys())

	require.NoError(t, sel.Set(nil))
	require.Empty(t, sel.Keys())

	_, err := sel.Toggle("bogus")
	require.ErrorIs(t, err, ErrUnknownContentType)
}

func TestSnapshotJobLookup(t *testing.T) {
	t.Parallel()

	snap := Snapshot{Jobs: []ContentJob{{Key: ContentFacebook, Result: "caption"}}}
	job, ok := snap.Job(ContentFacebook)
	require.True(t, ok)
	require.Equal(t, "caption", job.Result)
	_, ok = snap.Job(ContentTitle)
	require.False(t, ok)
}
