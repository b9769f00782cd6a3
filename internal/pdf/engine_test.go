package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsEngine(t *testing.T) {
	e, err := New("", Options{})
	require.NoError(t, err)
	assert.IsType(t, &RodEngine{}, e)

	e, err = New("ChromeDP", Options{})
	require.NoError(t, err)
	assert.IsType(t, &ChromedpEngine{}, e)

	_, err = New("wkhtmltopdf", Options{})
	assert.Error(t, err)
}

func TestNewAppliesDefaults(t *testing.T) {
	e, err := New(EngineRod, Options{})
	require.NoError(t, err)
	rod := e.(*RodEngine)
	assert.Equal(t, DefaultTimeout, rod.opts.Timeout)
	assert.NotNil(t, rod.opts.Logger)
}
