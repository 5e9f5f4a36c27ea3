package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFactory struct {
	factoryType string
}

func (f *fakeFactory) GetType() string { return f.factoryType }

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New[*fakeFactory]()
	r.Register("alpha", &fakeFactory{factoryType: "alpha"})

	factory, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", factory.GetType())
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := New[*fakeFactory]()

	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := New[*fakeFactory]()
	first := &fakeFactory{factoryType: "alpha"}
	second := &fakeFactory{factoryType: "alpha"}

	r.Register("alpha", first)
	r.Register("alpha", second)

	factory, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Same(t, second, factory)
	assert.Len(t, r.Types(), 1)
}

func TestRegistry_Types(t *testing.T) {
	r := New[*fakeFactory]()
	r.Register("alpha", &fakeFactory{factoryType: "alpha"})
	r.Register("beta", &fakeFactory{factoryType: "beta"})

	assert.ElementsMatch(t, []string{"alpha", "beta"}, r.Types())
}
