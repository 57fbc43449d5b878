package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	Base
}

func stubFactory(trader Trader, name, symbol string, _ map[string]any) Strategy {
	return &stubStrategy{Base: NewBase(trader, "Stub", name, symbol)}
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()
	require.Error(t, reg.Register("", stubFactory))
	require.Error(t, reg.Register("Stub", nil))
	require.NoError(t, reg.Register("Stub", stubFactory))
	require.Error(t, reg.Register("Stub", stubFactory), "duplicate registration rejected")
}

func TestCreateBindsInstance(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("Stub", stubFactory))

	s, ok := reg.Create("Stub", nil, "alpha", "rb2510.SHFE", nil)
	require.True(t, ok)
	require.Equal(t, "alpha", s.Name())
	require.Equal(t, "Stub", s.ClassName())
	require.Equal(t, "rb2510.SHFE", s.Symbol())
	require.False(t, s.Inited())
	require.False(t, s.Trading())
	require.True(t, s.Pos().IsZero())

	_, ok = reg.Create("Missing", nil, "alpha", "rb2510.SHFE", nil)
	require.False(t, ok)
}

func TestNamesSorted(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("Zeta", stubFactory))
	require.NoError(t, reg.Register("Alpha", stubFactory))
	require.Equal(t, []string{"Alpha", "Zeta"}, reg.Names())
}

func TestDefaultParameters(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("Stub", stubFactory))

	params, ok := reg.DefaultParameters("Stub")
	require.True(t, ok)
	require.Empty(t, params)

	_, ok = reg.DefaultParameters("Missing")
	require.False(t, ok)
}
