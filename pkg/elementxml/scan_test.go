package elementxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanChildren_ClosedChildren(t *testing.T) {
	closed, openKey, openText, openIncomplete := scanChildren(`<location>Seoul</location><unit>celsius</unit>`)
	assert.False(t, openIncomplete)
	assert.Equal(t, "", openKey)
	assert.Equal(t, "", openText)
	assert.Equal(t, []childOcc{{Key: "location", Value: "Seoul"}, {Key: "unit", Value: "celsius"}}, closed)
}

func TestScanChildren_SelfClosingChild(t *testing.T) {
	closed, _, _, incomplete := scanChildren(`<flag/><location>NY</location>`)
	assert.False(t, incomplete)
	assert.Equal(t, []childOcc{{Key: "flag", Value: ""}, {Key: "location", Value: "NY"}}, closed)
}

func TestScanChildren_TrailingOpenChild(t *testing.T) {
	closed, openKey, openText, incomplete := scanChildren(`<location>Seoul</location><unit>cel`)
	assert.True(t, incomplete)
	assert.Equal(t, "unit", openKey)
	assert.Equal(t, "cel", openText)
	assert.Equal(t, []childOcc{{Key: "location", Value: "Seoul"}}, closed)
}

func TestScanChildren_RepeatedChild(t *testing.T) {
	closed, _, _, incomplete := scanChildren(`<numbers>1</numbers><numbers>2</numbers>`)
	assert.False(t, incomplete)
	assert.Equal(t, []childOcc{{Key: "numbers", Value: "1"}, {Key: "numbers", Value: "2"}}, closed)
}

func TestScanChildren_TrimsWhitespaceInValue(t *testing.T) {
	closed, _, _, _ := scanChildren(`<location>  Seoul  </location>`)
	assert.Equal(t, "Seoul", closed[0].Value)
}

func TestIndexTagClose_DoesNotMatchLongerTagName(t *testing.T) {
	idx := indexTagClose(`</locationx>`, "</location")
	assert.Equal(t, -1, idx)
}

func TestIndexTagClose_MatchesWithTrailingWhitespace(t *testing.T) {
	idx := indexTagClose(`</location  >`, "</location")
	assert.Equal(t, 0, idx)
}

func TestIndexTagClose_SkipsFalseMatchToFindReal(t *testing.T) {
	idx := indexTagClose(`</locationx></location>`, "</location")
	assert.Equal(t, len(`</locationx>`), idx)
}
