package jsonprefix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocateTopLevelValue_CompleteObjectValue(t *testing.T) {
	v, complete, found := LocateTopLevelValue(`{"name":"get_weather","arguments":{"location":"Seoul"}}`, "arguments")
	assert.True(t, found)
	assert.True(t, complete)
	assert.Equal(t, `{"location":"Seoul"}`, v)
}

func TestLocateTopLevelValue_IncompleteObjectValue(t *testing.T) {
	v, complete, found := LocateTopLevelValue(`{"name":"get_weather","arguments":{"location":"Seo`, "arguments")
	assert.True(t, found)
	assert.False(t, complete)
	assert.Equal(t, `{"location":"Seo`, v)
}

func TestLocateTopLevelValue_StringValue(t *testing.T) {
	v, complete, found := LocateTopLevelValue(`{"name":"get_weather","arguments":{}}`, "name")
	assert.True(t, found)
	assert.True(t, complete)
	assert.Equal(t, `"get_weather"`, v)
}

func TestLocateTopLevelValue_KeyNotPresentYet(t *testing.T) {
	_, _, found := LocateTopLevelValue(`{"name":"get_weather"`, "arguments")
	assert.False(t, found)
}

func TestLocateTopLevelValue_KeyOrderIndependent(t *testing.T) {
	v, complete, found := LocateTopLevelValue(`{"arguments":{"a":1},"name":"calc"}`, "name")
	assert.True(t, found)
	assert.True(t, complete)
	assert.Equal(t, `"calc"`, v)
}

func TestLocateTopLevelValue_NotAnObject(t *testing.T) {
	_, _, found := LocateTopLevelValue(`not json`, "name")
	assert.False(t, found)
}
