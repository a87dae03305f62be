package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipeline(t *testing.T) {
	p, err := NewPipeline(123, "github.com:12345:branchName")
	require.NoError(t, err)

	assert.Equal(t, int64(123), p.ID)
	assert.Equal(t, "github.com:12345:branchName", p.ScmURI)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestNewPipeline_Invalid(t *testing.T) {
	_, err := NewPipeline(0, "github.com:1:main")
	assert.ErrorIs(t, err, ErrPipelineIDInvalid)

	_, err = NewPipeline(1, "  ")
	assert.ErrorIs(t, err, ErrScmURIRequired)
}

func TestPipeline_Owns(t *testing.T) {
	p := Pipeline{ID: 1, ScmURI: "github.com:1:main"}

	assert.True(t, p.Owns(Template{ScmURI: "github.com:1:main"}))
	assert.False(t, p.Owns(Template{ScmURI: "github.com:2:main"}))
}
