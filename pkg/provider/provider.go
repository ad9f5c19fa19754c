// Package provider defines the boundary between the pagination driver and
// the service that supplies pages of posts.
package provider

import (
	"context"

	"xscraper/pkg/post"
)

// Page is one response from the timeline. Cursor continues after it; an
// empty Posts slice is the terminal or empty-batch signal
type Page struct {
	Posts  []post.Post
	Cursor string
}

// Len returns the number of posts on the page
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Posts)
}

// Provider produces authenticated sessions. Authenticate fails with an
// auth error when credentials are rejected
type Provider interface {
	Authenticate(ctx context.Context) (Session, error)
}

// Session fetches pages of an account's posts. An empty cursor requests the
// first page. Errors are classified as rate_limit (optionally with a reset
// time), transient, connectivity or auth
type Session interface {
	FetchPage(ctx context.Context, handle, cursor string) (*Page, error)
}

// Refresher is implemented by providers that reuse a persisted session.
// Discard drops it so the next Authenticate obtains a fresh one; it reports
// false when there is nothing to drop or no way to replace it
type Refresher interface {
	Discard() bool
}
