package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditorSessions(t *testing.T) {
	e := New()
	var switched, changed []string
	e.SessionSwitched.Subscribe(func(f string) { switched = append(switched, f) })
	e.ContentChanged.Subscribe(func(f string) { changed = append(changed, f) })

	e.Open("a.sol", "A")
	e.OpenReadOnly("github.com/o/r/b.sol", "B")
	assert.Equal(t, "github.com/o/r/b.sol", e.Current())
	assert.True(t, e.IsReadOnly("github.com/o/r/b.sol"))

	require.ErrorIs(t, e.SetContent("github.com/o/r/b.sol", "x"), ErrReadOnly)
	require.ErrorIs(t, e.SetContent("nope.sol", "x"), ErrNoSession)
	require.NoError(t, e.SetContent("a.sol", "A2"))

	content, ok := e.Get("a.sol")
	require.True(t, ok)
	assert.Equal(t, "A2", content)
	assert.Equal(t, []string{"a.sol", "github.com/o/r/b.sol"}, switched)
	assert.Equal(t, []string{"a.sol"}, changed)

	e.Close("github.com/o/r/b.sol")
	assert.Empty(t, e.Current())
}

func TestEditorAnnotations(t *testing.T) {
	e := New()
	e.AddAnnotation(Annotation{Row: 1, Column: 2, Text: "boom", Type: "error"})
	a := e.Annotations()
	require.Len(t, a, 1)
	a[0].Text = "mutated"
	assert.Equal(t, "boom", e.Annotations()[0].Text)

	e.ClearAnnotations()
	assert.Empty(t, e.Annotations())
}
