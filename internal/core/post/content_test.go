package post

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmptyContent(t *testing.T) {
	assert.True(t, IsEmptyContent(""))
	assert.True(t, IsEmptyContent("<p></p>"))
	assert.True(t, IsEmptyContent("<p>  \n\t </p><br/>"))
	assert.False(t, IsEmptyContent("<p>hello</p>"))
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "Tom & Jerry", NormalizeTitle("<span>Tom &amp; Jerry</span>"))
	assert.Equal(t, "Plain", NormalizeTitle("Plain"))
}

func TestNormalizeTagName(t *testing.T) {
	assert.Equal(t, "word press theme", NormalizeTagName("  word   press\ttheme "))

	long := ""
	for i := 0; i < 20; i++ {
		long += "abcdefgh "
	}
	assert.LessOrEqual(t, len(NormalizeTagName(long)), 80)
}

func TestPickInboundLinks(t *testing.T) {
	links := []string{"a", "b", "c", "d"}

	picked := PickInboundLinks(links, 2)
	assert.Len(t, picked, 2)
	for _, p := range picked {
		assert.Contains(t, links, p)
	}
	assert.NotEqual(t, picked[0], picked[1])

	// 候補数を超える要求は候補数に切り詰める
	assert.Len(t, PickInboundLinks([]string{"x"}, 2), 1)
	assert.Empty(t, PickInboundLinks(nil, 2))
}

func TestBuildPromptSubstitutesTitle(t *testing.T) {
	prompt := BuildPrompt("My Topic", []string{"https://example.com"}, "Mention {title} twice.")
	assert.Contains(t, prompt, "Topic: My Topic")
	assert.Contains(t, prompt, "Mention My Topic twice.")
	assert.Contains(t, prompt, "- https://example.com")
	assert.Contains(t, prompt, "content_html")
}

func TestBuildMetadataPromptTruncatesSummary(t *testing.T) {
	long := "<p>"
	for i := 0; i < 500; i++ {
		long += "lorem ipsum "
	}
	long += "</p>"

	prompt := BuildMetadataPrompt("T", long)
	assert.Contains(t, prompt, "Title: T")
	assert.Less(t, len(prompt), 2000)
}
