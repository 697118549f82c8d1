package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDoc(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      string
		summary string
		params  map[string]string
	}{
		{
			name:    "sphinx",
			in:      "Add two numbers.\n:param a: the first operand\n:param b: the second operand\n:returns: the sum",
			summary: "Add two numbers.",
			params:  map[string]string{"a": "the first operand", "b": "the second operand"},
		},
		{
			name:    "sphinx typed",
			in:      "Scale.\n:param float factor: multiplier",
			summary: "Scale.",
			params:  map[string]string{"factor": "multiplier"},
		},
		{
			name: "google",
			in: `Get the weather
for a city.

Args:
    city: the city to look up
    unit (str): celsius or
        fahrenheit
Returns:
    the forecast`,
			summary: "Get the weather for a city.",
			params:  map[string]string{"city": "the city to look up", "unit": "celsius or fahrenheit"},
		},
		{
			name:    "summary only",
			in:      "  Does a thing.  ",
			summary: "Does a thing.",
			params:  map[string]string{},
		},
		{
			name:    "empty",
			in:      "",
			summary: "",
			params:  map[string]string{},
		},
		{
			name:    "malformed",
			in:      ":param\n:param : x\nArgs:\n    not a param line",
			summary: "",
			params:  map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := ParseDoc(tt.in)
			assert.Equal(t, tt.summary, d.Summary)
			assert.Equal(t, tt.params, d.Params)
		})
	}
}
