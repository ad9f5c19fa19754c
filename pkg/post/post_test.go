package post

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "xscraper/pkg/errors"
)

func TestColumns(t *testing.T) {
	require.Len(t, Columns, 13)
	assert.Equal(t, "Tweet ID", Columns[0])
	assert.Equal(t, "Media Available", Columns[12])
}

func TestProjectFull(t *testing.T) {
	p := Post{
		ID:           "1790000000000000001",
		Text:         String("hello, \"world\"\nsecond line"),
		Language:     String("en"),
		RawCreatedAt: "Wed Oct 10 20:19:24 +0000 2018",
		Source:       String("<a href=\"https://mobile.twitter.com\">Twitter Web App</a>"),
		RetweetCount: Int(3),
		LikeCount:    Int(42),
		ReplyCount:   Int(1),
		QuoteCount:   Int(0),
		ViewCount:    Int(1200),
		IsRetweet:    Bool(true),
		IsSensitive:  Bool(false),
		HasMedia:     Bool(true),
	}

	row, err := Project(p)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"1790000000000000001",
		"hello, \"world\"\nsecond line",
		"en",
		"Wed Oct 10 20:19:24 +0000 2018",
		"<a href=\"https://mobile.twitter.com\">Twitter Web App</a>",
		"3", "42", "1", "0", "1200",
		"true", "false", "yes",
	}, row)
}

func TestProjectDefaults(t *testing.T) {
	row, err := Project(Post{ID: "7"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"7", "N/A", "N/A", "N/A", "N/A",
		"0", "0", "0", "0", "0",
		"false", "false", "no",
	}, row)
}

func TestProjectCreatedAtFromTime(t *testing.T) {
	ts := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	row, err := Project(Post{ID: "1", CreatedAt: &ts})
	require.NoError(t, err)
	assert.Equal(t, "Thu Mar 04 05:06:07 +0000 2021", row[3])
}

func TestProjectErrors(t *testing.T) {
	tests := []struct {
		name string
		post Post
	}{
		{"missing id", Post{}},
		{"bad date", Post{ID: "1", RawCreatedAt: "yesterday"}},
		{"negative counter", Post{ID: "1", LikeCount: Int(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Project(tt.post)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.ErrorTypeProjection))
		})
	}
}

func TestCreated(t *testing.T) {
	p := Post{ID: "1", RawCreatedAt: "Wed Oct 10 20:19:24 +0000 2018"}
	ts, ok := p.Created()
	require.True(t, ok)
	assert.Equal(t, 2018, ts.Year())

	_, ok = Post{ID: "1"}.Created()
	assert.False(t, ok)

	_, ok = Post{ID: "1", RawCreatedAt: "garbage"}.Created()
	assert.False(t, ok)
}
