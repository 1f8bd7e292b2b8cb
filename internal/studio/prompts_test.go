package studio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPromptEmbedsTranscript(t *testing.T) {
	t.Parallel()

	for _, key := range ContentTypes() {
		prompt, err := Prompt(key, "আমি বলছি")
		require.NoError(t, err, key)
		require.Contains(t, prompt, `"আমি বলছি"`, key)
		require.Contains(t, prompt, "Bangla", key)
	}

	title, err := Prompt(ContentTitle, "x")
	require.NoError(t, err)
	require.Contains(t, title, "numbered list")

	_, err = Prompt("summary", "x")
	require.ErrorIs(t, err, ErrUnknownContentType)
}
