package toolstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewToolCallID_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := NewToolCallID()
		assert.True(t, ValidateToolCallID(id), "id %q should match ^call_[A-Za-z0-9]{24}$", id)
	}
}

func TestNewToolCallID_Unique(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := NewToolCallID()
		assert.False(t, seen[id], "collision on %q", id)
		seen[id] = true
	}
}

func TestValidateToolCallID_RejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"call_short",
		"notcall_abcdefghijklmnopqrstuvwx",
		"call_" + "abcdefghijklmnopqrstuvw!", // bad char
		"CALL_abcdefghijklmnopqrstuvwx",
	}
	for _, c := range cases {
		assert.False(t, ValidateToolCallID(c), "expected %q to be invalid", c)
	}
}
