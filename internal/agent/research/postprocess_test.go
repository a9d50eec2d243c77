package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostProcess(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		boxed bool
		want  string
	}{
		{"thinking and answer", "<thinking>reasoning...</thinking>\n\nPrefix <answer>42</answer> suffix", false, "42"},
		{"no tags", "  just text  ", false, "just text"},
		{"unclosed answer", "<answer>Paris", false, "Paris"},
		{"think prefix", "long chain</think>\n<answer>7</answer>", false, "7"},
		{"boxed", `<answer>\boxed{1969}</answer>`, true, "1969"},
		{"boxed ignored", `<answer>\boxed{1969}</answer>`, false, `\boxed{1969}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PostProcess(tc.in, tc.boxed))
		})
	}
}

func TestHasAnswer(t *testing.T) {
	assert.True(t, HasAnswer("x <answer>y</answer>"))
	assert.False(t, HasAnswer("no answer here"))
}
