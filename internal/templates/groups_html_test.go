package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderGroupsHTML(t *testing.T) {
	out, err := RenderGroupsHTML(GroupsEmailData{
		SessionID: "session_20250101_090000",
		Groups: []GroupEntry{{
			Number:  1,
			Name:    "Makers",
			URL:     "/group1",
			Members: []string{"Ann", "<b>Ben</b>", "Cai"},
			Bullets: []string{"Same tools"},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "1 groups are ready")
	assert.Contains(t, out, "session_20250101_090000")
	assert.Contains(t, out, "Group 1: Makers")
	assert.Contains(t, out, "&lt;b&gt;Ben&lt;/b&gt;")
	assert.NotContains(t, out, "<b>Ben</b>")
	assert.Contains(t, out, "Same tools")
}

func TestRenderGroupsHTMLWithoutSession(t *testing.T) {
	out, err := RenderGroupsHTML(GroupsEmailData{})
	require.NoError(t, err)
	assert.NotContains(t, out, "Session <strong>")
	assert.Contains(t, out, "0 groups are ready")
}
