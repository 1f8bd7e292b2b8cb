package gcs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	t.Parallel()

	bucket, object, err := ParseURI("gs://podcasts/2024/episode-01.mp3")
	require.NoError(t, err)
	require.Equal(t, "podcasts", bucket)
	require.Equal(t, "2024/episode-01.mp3", object)

	for _, bad := range []string{
		"",
		"https://storage.googleapis.com/podcasts/a.mp3",
		"gs://podcasts",
		"gs://podcasts/",
		"gs:///a.mp3",
	} {
		_, _, err := ParseURI(bad)
		require.Error(t, err, bad)
	}
}

func TestNewRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "podcasts"})
	require.Error(t, err)
}
