package viz

import (
	"path/filepath"
	"testing"

	"github.com/goccy/go-graphviz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/sketchy-calendar/pkg/scene"
)

func TestHistory_CountsSceneAfterEachChange(t *testing.T) {
	s, err := scene.New()
	require.NoError(t, err)
	sc, err := s.Snapshot()
	require.NoError(t, err)
	_, _, err = s.CreateCard(sc.PageOrder[0], scene.Point{}, 10, 10)
	require.NoError(t, err)
	_, err = s.CreatePage()
	require.NoError(t, err)

	doc, err := s.ForkDoc()
	require.NoError(t, err)
	entries, err := History(doc)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entries), 3)

	last := entries[len(entries)-1]
	assert.Equal(t, "create page", last.Message)
	assert.Equal(t, 2, last.Pages)
	assert.Equal(t, 1, last.Cards)
	assert.Equal(t, 1, last.Instances)
	assert.NotEmpty(t, last.Deps)
}

func TestRenderToFile(t *testing.T) {
	s, err := scene.New()
	require.NoError(t, err)
	require.NoError(t, s.SetTitle("Week plan"))
	doc, err := s.ForkDoc()
	require.NoError(t, err)

	raw, err := Render(doc, graphviz.SVG)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<svg")

	out := filepath.Join(t.TempDir(), "history.svg")
	require.NoError(t, RenderToFile(doc, out))
	assert.FileExists(t, out)
}
