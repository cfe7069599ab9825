package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/voxlabel/internal/errs"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

func TestParserTypedValues(t *testing.T) {
	p := NewParser("LArTPCMLReco3D", Params{
		"BBoxSize":               "[ 740, 320, 530]",
		"UseSimEnergyDeposit":    "True",
		"EnergyDepositThreshold": "0.01",
		"DeltaSize":              "10",
		"LogLevel":               " VERBOSE ",
		"SemanticPriority":       "[1, 0, 2]",
	})

	v, ok := p.Vec3("BBoxSize")
	require.True(t, ok)
	assert.Equal(t, voxel.Point3D{X: 740, Y: 320, Z: 530}, v)

	b, ok := p.Bool("UseSimEnergyDeposit")
	require.True(t, ok)
	assert.True(t, b)

	assert.Equal(t, 0.01, p.FloatOr("EnergyDepositThreshold", 5))
	assert.Equal(t, int64(10), p.IntOr("DeltaSize", 3))
	assert.Equal(t, "VERBOSE", p.TextOr("LogLevel", "INFO"))

	ints, ok := p.Ints("SemanticPriority")
	require.True(t, ok)
	assert.Equal(t, []int{1, 0, 2}, ints)

	unused, err := p.Finish(true)
	require.NoError(t, err)
	assert.Empty(t, unused)
}

func TestParserDefaults(t *testing.T) {
	p := NewParser("x", Params{})
	assert.Equal(t, 0.5, p.FloatOr("Missing", 0.5))
	assert.True(t, p.BoolOr("Missing", true))
	assert.Equal(t, int64(7), p.IntOr("Missing", 7))
	assert.Equal(t, "d", p.TextOr("Missing", "d"))
	assert.False(t, p.Has("Missing"))
	assert.NoError(t, p.Err())
}

func TestParserConversionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		val  string
		get  func(*Parser)
	}{
		{"not a number", "abc", func(p *Parser) { p.Float("K") }},
		{"empty", "  ", func(p *Parser) { p.Float("K") }},
		{"fractional int", "3.5", func(p *Parser) { p.Int("K") }},
		{"fractional int above ten", "10.7", func(p *Parser) { p.IntOr("K", 1) }},
		{"fractional int in list", "[1, 2.5]", func(p *Parser) { p.Ints("K") }},
		{"int from text", "ten", func(p *Parser) { p.Int("K") }},
		{"short vector", "[1, 2]", func(p *Parser) { p.Vec3("K") }},
		{"bad flow", "[1, 2", func(p *Parser) { p.Vec3("K") }},
		{"not a bool", "maybe", func(p *Parser) { p.Bool("K") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser("algo", Params{"K": tt.val})
			tt.get(p)
			_, err := p.Finish(false)
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrConfiguration)

			var ce *errs.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "K", ce.Option)
		})
	}
}

func TestParserFinishStrictness(t *testing.T) {
	params := Params{"Known": "1", "Typo": "2", "Other": "3"}

	p := NewParser("algo", params)
	p.Float("Known")
	unused, err := p.Finish(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Other", "Typo"}, unused)

	p = NewParser("algo", params)
	p.Float("Known")
	_, err = p.Finish(true)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestParserFailKeepsFirstError(t *testing.T) {
	p := NewParser("algo", Params{})
	p.Fail("A", "first")
	p.Fail("B", "second")
	assert.Contains(t, p.Err().Error(), "first")
}

func TestParamsString(t *testing.T) {
	assert.Equal(t, "{A: 1, B: [1, 2]}", Params{"B": "[1, 2]", "A": "1"}.String())
}

func TestParserIntForms(t *testing.T) {
	p := NewParser("algo", Params{"A": "10", "B": "-3", "C": "[2, 0, 1]"})
	a, ok := p.Int("A")
	assert.True(t, ok)
	assert.Equal(t, int64(10), a)
	assert.Equal(t, int64(-3), p.IntOr("B", 0))
	c, ok := p.Ints("C")
	assert.True(t, ok)
	assert.Equal(t, []int{2, 0, 1}, c)
	_, err := p.Finish(true)
	assert.NoError(t, err)
}
