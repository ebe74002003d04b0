package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestModerator(t *testing.T) *Moderator {
	t.Helper()
	m, err := NewModerator([]string{"badword", "idiot"}, '*')
	require.NoError(t, err)
	return m
}

func TestModerator_Censor_MasksMatches(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t)

	masked, found := m.Censor("you badword you")

	req.Equal("you ******* you", masked)
	req.Equal([]string{"badword"}, found)
}

func TestModerator_Censor_CleanTextUntouched(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t)

	masked, found := m.Censor("a perfectly polite sentence")

	req.Equal("a perfectly polite sentence", masked)
	req.Empty(found)
}

func TestModerator_Censor_CaseInsensitive(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t)

	masked, found := m.Censor("BadWord here")

	req.Equal("******* here", masked)
	req.Len(found, 1)
}

func TestModerator_Censor_SpacedOutEvasion(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t)

	// Separators inside the word do not defeat the match; the original
	// span, separators included, gets masked
	masked, found := m.Censor("b a d w o r d")

	req.Equal("*************", masked)
	req.Len(found, 1)
}

func TestModerator_Censor_MultipleWords(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t)

	masked, found := m.Censor("badword and idiot")

	req.Equal("******* and *****", masked)
	req.Len(found, 2)
}

func TestModerator_Censor_EmptyInput(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t)

	masked, found := m.Censor("")

	req.Empty(masked)
	req.Empty(found)
}

func TestEmbeddedWords_NotEmpty(t *testing.T) {
	req := require.New(t)

	words, err := EmbeddedWords()

	req.NoError(err)
	req.NotEmpty(words)
	for _, w := range words {
		req.NotEmpty(w)
		req.NotContains(w, "#")
	}
}
