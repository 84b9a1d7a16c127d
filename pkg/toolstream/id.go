package toolstream

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	toolCallIDLength = 24
	toolCallCharset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	toolCallIDPrefix = "call_"
)

var toolCallIDPattern = regexp.MustCompile(`^call_[a-zA-Z0-9]{24}$`)

// NewToolCallID generates a tool-call id with the "call_" prefix followed
// by 24 cryptographically random alphanumeric characters, matching
// ^call_[A-Za-z0-9]{24}$.
func NewToolCallID() string {
	return toolCallIDPrefix + randomAlphanumeric(toolCallIDLength)
}

// ValidateToolCallID reports whether id matches the tool-call id format.
func ValidateToolCallID(id string) bool {
	return toolCallIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(toolCallCharset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = toolCallCharset[idx.Int64()]
	}
	return string(b)
}
