// Package post defines the harvested record and its fixed CSV projection.
package post

import (
	"fmt"
	"strconv"
	"time"

	errs "xscraper/pkg/errors"
)

// CreatedAtLayout is X's legacy created_at timestamp format
const CreatedAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// Text defaults used when a field is absent from the source record
const (
	MissingText = "N/A"
	MediaYes    = "yes"
	MediaNo     = "no"
)

// Columns is the output header, in order
var Columns = []string{
	"Tweet ID",
	"Tweet Content",
	"Language",
	"Created At",
	"Source",
	"Retweet Count",
	"Like Count",
	"Reply Count",
	"Quote Count",
	"View Count",
	"Is Retweet",
	"Possibly Sensitive",
	"Media Available",
}

// Post is one fetched record. Nil optional fields were absent in the source
type Post struct {
	ID           string
	Text         *string
	Language     *string
	CreatedAt    *time.Time
	RawCreatedAt string
	Source       *string
	RetweetCount *int64
	LikeCount    *int64
	ReplyCount   *int64
	QuoteCount   *int64
	ViewCount    *int64
	IsRetweet    *bool
	IsSensitive  *bool
	HasMedia     *bool
}

// ParseCreatedAt parses X's created_at text
func ParseCreatedAt(s string) (time.Time, error) {
	return time.Parse(CreatedAtLayout, s)
}

// Project flattens p into a row matching Columns
func Project(p Post) ([]string, error) {
	if p.ID == "" {
		return nil, errs.NewProjection("post has no id", nil)
	}

	createdAt, err := createdAtColumn(p)
	if err != nil {
		return nil, err
	}

	counters := []*int64{p.RetweetCount, p.LikeCount, p.ReplyCount, p.QuoteCount, p.ViewCount}
	counts := make([]string, len(counters))
	for i, c := range counters {
		if c != nil && *c < 0 {
			return nil, errs.NewProjection(fmt.Sprintf("%s is negative", Columns[5+i]), nil)
		}
		counts[i] = strconv.FormatInt(int64OrZero(c), 10)
	}

	media := MediaNo
	if boolOrFalse(p.HasMedia) {
		media = MediaYes
	}

	row := []string{
		p.ID,
		textOrMissing(p.Text),
		textOrMissing(p.Language),
		createdAt,
		textOrMissing(p.Source),
	}
	row = append(row, counts...)
	row = append(row,
		strconv.FormatBool(boolOrFalse(p.IsRetweet)),
		strconv.FormatBool(boolOrFalse(p.IsSensitive)),
		media,
	)
	return row, nil
}

// createdAtColumn keeps the source text verbatim when present
func createdAtColumn(p Post) (string, error) {
	switch {
	case p.RawCreatedAt != "":
		if p.CreatedAt == nil {
			if _, err := ParseCreatedAt(p.RawCreatedAt); err != nil {
				return "", errs.NewProjection("unparseable created_at", err)
			}
		}
		return p.RawCreatedAt, nil
	case p.CreatedAt != nil:
		return p.CreatedAt.UTC().Format(CreatedAtLayout), nil
	default:
		return MissingText, nil
	}
}

// Created returns the creation time, parsing RawCreatedAt if needed
func (p Post) Created() (time.Time, bool) {
	if p.CreatedAt != nil {
		return *p.CreatedAt, true
	}
	if p.RawCreatedAt != "" {
		if t, err := ParseCreatedAt(p.RawCreatedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func textOrMissing(s *string) string {
	if s == nil {
		return MissingText
	}
	return *s
}

func int64OrZero(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

func boolOrFalse(b *bool) bool {
	return b != nil && *b
}

// String returns a pointer to s, for building posts
func String(s string) *string { return &s }

// Int returns a pointer to n, for building posts
func Int(n int64) *int64 { return &n }

// Bool returns a pointer to b, for building posts
func Bool(b bool) *bool { return &b }
