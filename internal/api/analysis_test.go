package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAnalysis(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		wantTC    string
		wantStyle []string
	}{
		{
			name:      "strict json",
			text:      `{"time_complexity": "O(n)", "code_style": ["E113 - unexpected indentation"]}`,
			wantTC:    "O(n)",
			wantStyle: []string{"E113 - unexpected indentation"},
		},
		{
			name:      "single quoted",
			text:      `{'time_complexity': 'O(1)', 'code_style': 'C0304 - Final newline missing'}`,
			wantTC:    "O(1)",
			wantStyle: []string{"C0304 - Final newline missing"},
		},
		{
			name:   "fenced",
			text:   "```json\n{\"time_complexity\": \"O(n^2)\"}\n```",
			wantTC: "O(n^2)",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := DecodeAnalysis(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTC, a.TimeComplexity)
			assert.Equal(t, tc.wantStyle, []string(a.CodeStyle))
		})
	}
}

func TestDecodeAnalysis_Malformed(t *testing.T) {
	for _, text := range []string{"", "the code looks fine", "{}", "[1,2]"} {
		_, err := DecodeAnalysis(text)
		require.ErrorIs(t, err, ErrBadAnalysis, text)
	}
}
