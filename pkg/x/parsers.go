package x

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"xscraper/pkg/post"
)

type timeline struct {
	Instructions []timelineInstruction `json:"instructions"`
}

type timelineInstruction struct {
	Type    string          `json:"type"`
	Entries []timelineEntry `json:"entries"`
	Entry   *timelineEntry  `json:"entry"`
}

type timelineEntry struct {
	EntryID string `json:"entryId"`
	Content struct {
		EntryType   string          `json:"entryType"`
		TypeName    string          `json:"__typename"`
		ItemContent json.RawMessage `json:"itemContent"`
		Value       string          `json:"value"`
		CursorType  string          `json:"cursorType"`
	} `json:"content"`
}

type tweetResult struct {
	TypeName string `json:"__typename"`
	RestID   string `json:"rest_id"`
	Source   string `json:"source"`
	Views    struct {
		Count string `json:"count"`
	} `json:"views"`
	Legacy *struct {
		FullText          string          `json:"full_text"`
		Lang              *string         `json:"lang"`
		CreatedAt         string          `json:"created_at"`
		FavoriteCount     *int64          `json:"favorite_count"`
		RetweetCount      *int64          `json:"retweet_count"`
		ReplyCount        *int64          `json:"reply_count"`
		QuoteCount        *int64          `json:"quote_count"`
		PossiblySensitive *bool           `json:"possibly_sensitive"`
		Retweeted         json.RawMessage `json:"retweeted_status_result"`
		Entities          struct {
			Media []json.RawMessage `json:"media"`
		} `json:"entities"`
	} `json:"legacy"`
	// TweetWithVisibilityResults wraps the real tweet one level down
	Tweet *tweetResult `json:"tweet"`
}

// parseUserID extracts rest_id from a UserByScreenName response
func parseUserID(body []byte) (string, error) {
	var raw struct {
		Data struct {
			User struct {
				Result struct {
					TypeName string `json:"__typename"`
					RestID   string `json:"rest_id"`
				} `json:"result"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("unmarshal UserByScreenName: %w", err)
	}
	r := raw.Data.User.Result
	if r.TypeName == "UserUnavailable" {
		return "", fmt.Errorf("user unavailable (suspended or restricted)")
	}
	if r.RestID == "" {
		return "", fmt.Errorf("user not found")
	}
	return r.RestID, nil
}

// parseUserTweets returns the page's posts in timeline order and the
// bottom cursor
func parseUserTweets(body []byte) ([]post.Post, string, error) {
	var raw struct {
		Data struct {
			User struct {
				Result struct {
					Timeline struct {
						Timeline timeline `json:"timeline"`
					} `json:"timeline"`
					TimelineV2 struct {
						Timeline timeline `json:"timeline"`
					} `json:"timeline_v2"`
				} `json:"result"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", fmt.Errorf("unmarshal UserTweets: %w", err)
	}
	tl := raw.Data.User.Result.Timeline.Timeline
	if len(tl.Instructions) == 0 {
		tl = raw.Data.User.Result.TimelineV2.Timeline
	}

	var posts []post.Post
	var cursor string
	for _, instruction := range tl.Instructions {
		entries := instruction.Entries
		if instruction.Entry != nil {
			entries = append(entries, *instruction.Entry)
		}
		for _, entry := range entries {
			c := entry.Content
			if c.EntryType == "TimelineTimelineCursor" || c.TypeName == "TimelineTimelineCursor" {
				if c.CursorType == "Bottom" || strings.HasPrefix(entry.EntryID, "cursor-bottom") {
					cursor = c.Value
				}
				continue
			}
			if c.ItemContent == nil {
				continue
			}
			var item struct {
				TypeName     string `json:"__typename"`
				TweetResults struct {
					Result *tweetResult `json:"result"`
				} `json:"tweet_results"`
			}
			if err := json.Unmarshal(c.ItemContent, &item); err != nil || item.TypeName != "TimelineTweet" {
				continue
			}
			if item.TweetResults.Result == nil {
				continue
			}
			posts = append(posts, toPost(*item.TweetResults.Result))
		}
	}
	return posts, cursor, nil
}

// toPost copies the fields present in r; absent ones stay nil so the
// sink applies its defaults. A missing id is left for the sink to reject
func toPost(r tweetResult) post.Post {
	if r.TypeName == "TweetWithVisibilityResults" && r.Tweet != nil {
		return toPost(*r.Tweet)
	}

	p := post.Post{ID: r.RestID}
	if r.Source != "" {
		p.Source = post.String(r.Source)
	}
	if r.Views.Count != "" {
		if n, err := strconv.ParseInt(r.Views.Count, 10, 64); err == nil {
			p.ViewCount = post.Int(n)
		}
	}

	l := r.Legacy
	if l == nil {
		return p
	}
	p.Text = post.String(l.FullText)
	p.Language = l.Lang
	p.RawCreatedAt = l.CreatedAt
	if t, err := post.ParseCreatedAt(l.CreatedAt); err == nil {
		p.CreatedAt = &t
	}
	p.LikeCount = l.FavoriteCount
	p.RetweetCount = l.RetweetCount
	p.ReplyCount = l.ReplyCount
	p.QuoteCount = l.QuoteCount
	p.IsSensitive = l.PossiblySensitive
	p.IsRetweet = post.Bool(len(l.Retweeted) > 0 && string(l.Retweeted) != "null")
	p.HasMedia = post.Bool(len(l.Entities.Media) > 0)
	return p
}
