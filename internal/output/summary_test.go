package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeList(t *testing.T) {
	s, err := SummarizeList([]byte(centralsList))
	require.NoError(t, err)

	assert.Equal(t, "CentralRequestList", s.Kind)
	assert.EqualValues(t, 1, s.Page)
	assert.EqualValues(t, 2, s.Total)
	require.Len(t, s.Items, 2)
	assert.Equal(t, ItemSummary{ID: "c1", Name: "alpha", Status: "ready", Region: "us-east-1"}, s.Items[0])
}

func TestSummarizeListEmpty(t *testing.T) {
	s, err := SummarizeList([]byte(`{"kind":"CentralRequestList","page":1,"size":0,"total":0,"items":[]}`))
	require.NoError(t, err)
	assert.Empty(t, s.Items)
}

func TestSummarizeListRejectsInvalid(t *testing.T) {
	_, err := SummarizeList([]byte("not json"))
	assert.Error(t, err)

	_, err = SummarizeList([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestFormatSummary(t *testing.T) {
	s, err := SummarizeList([]byte(centralsList))
	require.NoError(t, err)

	out := NewFormatter(false, true).FormatSummary(s)
	assert.True(t, strings.HasPrefix(out, "Kind: CentralRequestList (page 1, 2 of 2)"), out)
	assert.Contains(t, out, "c2  beta  provisioning  eu-west-1")
}
