package htmltext_test

import (
	"testing"

	"github.com/anoopengineer/rss-bluesky-bridge/internal/htmltext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"blank", " \n\t", ""},
		{"plain text", "Hello   world", "Hello world"},
		{"inline tags", "<p>Go <b>1.25</b> is <a href=\"https://go.dev\">out</a>.</p>", "Go 1.25 is out."},
		{"entities", "Fish &amp; chips &lt;3", "Fish & chips <3"},
		{"paragraphs", "<p>First</p><p>Second</p>", "First Second"},
		{"line breaks", "one<br>two<br/>three", "one two three"},
		{"list", "<ul><li>a</li><li>b</li></ul>", "a b"},
		{"script and style", "<style>p{}</style><p>kept</p><script>alert(1)</script>", "kept"},
		{"unicode", "<p>Café 👩‍👩‍👧 naïve</p>", "Café 👩‍👩‍👧 naïve"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := htmltext.ToText(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMustText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b", htmltext.MustText("<div>a</div><div>b</div>"))
}
