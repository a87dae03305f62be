package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLabelSet_DeduplicatesAndSorts(t *testing.T) {
	set := NewLabelSet("b", "a", "b", " c ", "")

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []string{"a", "b", "c"}, set.Slice())
}

func TestLabelSet_ZeroValue(t *testing.T) {
	var set LabelSet

	assert.Equal(t, 0, set.Len())
	assert.False(t, set.Contains("a"))
	assert.NotNil(t, set.Slice())
	assert.True(t, set.Equal(NewLabelSet()))
}

func TestLabelSet_Union(t *testing.T) {
	existing := NewLabelSet("a", "b")
	submitted := NewLabelSet("b", "c")

	union := existing.Union(submitted)

	assert.Equal(t, []string{"a", "b", "c"}, union.Slice())
	assert.True(t, union.Equal(submitted.Union(existing)), "union is commutative")
	assert.True(t, union.Equal(union.Union(submitted)), "union is idempotent")
}

func TestLabelSet_Difference(t *testing.T) {
	union := NewLabelSet("a", "b", "c")

	added := union.Difference(NewLabelSet("a", "b"))
	assert.Equal(t, []string{"c"}, added.Slice())

	none := union.Difference(union)
	assert.Equal(t, 0, none.Len())
}

func TestLabelSet_Contains(t *testing.T) {
	set := NewLabelSet("stable", "beta")

	assert.True(t, set.Contains("beta"))
	assert.True(t, set.Contains("stable"))
	assert.False(t, set.Contains("alpha"))
}

func TestLabelSet_JSON(t *testing.T) {
	var set LabelSet
	require.NoError(t, json.Unmarshal([]byte(`["z","a","z"]`), &set))
	assert.Equal(t, []string{"a", "z"}, set.Slice())

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","z"]`, string(data))

	data, err = json.Marshal(LabelSet{})
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestLabelSet_UnmarshalRejectsNonArray(t *testing.T) {
	var set LabelSet
	assert.Error(t, json.Unmarshal([]byte(`"a"`), &set))
}
