package protocol

import (
	"testing"

	"github.com/lanehollow/toolstream/pkg/toolstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransducer struct{}

func (fakeTransducer) Transform(toolstream.UpstreamEvent, toolstream.EnqueueFunc) {}
func (fakeTransducer) Flush(toolstream.EnqueueFunc)                               {}

func TestRegisterLookupNew(t *testing.T) {
	Register(Descriptor{
		Kind: "test-kind",
		Name: "Test Kind",
		New: func([]toolstream.ToolDescriptor, toolstream.ParserOptions) toolstream.Transducer {
			return fakeTransducer{}
		},
	})

	d, ok := Lookup("test-kind")
	require.True(t, ok)
	assert.Equal(t, "Test Kind", d.Name)

	tr, err := New("test-kind", nil, toolstream.ParserOptions{})
	require.NoError(t, err)
	assert.NotNil(t, tr)
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New("no-such-kind", nil, toolstream.ParserOptions{})
	assert.Error(t, err)
}

func TestKinds_OnlyListsRegistered(t *testing.T) {
	for _, k := range Kinds() {
		_, ok := Lookup(k)
		assert.True(t, ok)
	}
}
