package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/migueldvb/fwrap/tracking"
)

func sampleStatus() *tracking.Status {
	return &tracking.Status{
		Artifact: "blas",
		Head:     "0123456789abcdef",
		Files: []tracking.FileStatus{
			{Path: "src/level1.f90", Recorded: "aa", Current: "aa"},
			{Path: "src/level2.f90", Recorded: "bb", Current: "cc"},
			{Path: "src/level3.f90", Recorded: "dd", Missing: true},
		},
		Excluded:    []string{"dgemm"},
		NeedsUpdate: true,
	}
}

func TestRenderStatusText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderStatus(&buf, sampleStatus(), "text", false))
	want := `blas (head 0123456789abcdef)
  ok        src/level1.f90
  modified  src/level2.f90
  missing   src/level3.f90
excluded: dgemm
update needed
`
	assert.Equal(t, want, buf.String())
}

func TestRenderStatusColor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderStatus(&buf, sampleStatus(), "", true))
	assert.Contains(t, buf.String(), "\033[33mmodified\033[0m")
	assert.Contains(t, buf.String(), "\033[31mmissing \033[0m")
}

func TestRenderStatusYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderStatus(&buf, sampleStatus(), "yaml", false))

	var got tracking.Status
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, *sampleStatus(), got)
	assert.Contains(t, buf.String(), "needs_update: true")
}

func TestRenderStatusPending(t *testing.T) {
	st := sampleStatus()
	st.NeedsUpdate = false
	st.Pending = "fwrap-update-1a2b3c4d"

	var buf bytes.Buffer
	require.NoError(t, renderStatus(&buf, st, "text", false))
	assert.True(t, strings.HasSuffix(buf.String(), "pending merge of fwrap-update-1a2b3c4d\n"))
	assert.NotContains(t, buf.String(), "update needed")
}
