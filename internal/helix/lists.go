package helix

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

type pagination struct {
	Cursor string `json:"cursor"`
}

type Follow struct {
	FromID   string `json:"from_id"`
	FromName string `json:"from_name"`
	ToID     string `json:"to_id"`
	ToName   string `json:"to_name"`
}

type followsPage struct {
	Total      int        `json:"total"`
	Data       []Follow   `json:"data"`
	Pagination pagination `json:"pagination"`
}

// Followers walks the full follower list of a broadcaster. progress (may be
// nil) is called after each page with the running count and the reported
// total.
func (c *Client) Followers(ctx context.Context, broadcasterID string, progress func(got, total int)) ([]Follow, error) {
	return c.follows(ctx, "to_id", broadcasterID, progress)
}

// Following walks all channels a user follows, same pagination contract.
func (c *Client) Following(ctx context.Context, userID string, progress func(got, total int)) ([]Follow, error) {
	return c.follows(ctx, "from_id", userID, progress)
}

func (c *Client) follows(ctx context.Context, key, id string, progress func(got, total int)) ([]Follow, error) {
	var all []Follow
	cursor := ""
	for {
		q := url.Values{}
		q.Set(key, id)
		q.Set("first", strconv.Itoa(defaultPageSize))
		if cursor != "" {
			q.Set("after", cursor)
		}
		var page followsPage
		if err := c.get(ctx, "/users/follows", q, &page); err != nil {
			return all, err
		}
		all = append(all, page.Data...)
		if progress != nil {
			progress(len(all), page.Total)
		}
		if page.Pagination.Cursor == "" || len(page.Data) == 0 {
			return all, nil
		}
		cursor = page.Pagination.Cursor
	}
}

type BlockedUser struct {
	UserID    string `json:"user_id"`
	UserLogin string `json:"user_login"`
}

type blocksPage struct {
	Data       []BlockedUser `json:"data"`
	Pagination pagination    `json:"pagination"`
}

// BlockedUsers walks the broadcaster's block list.
func (c *Client) BlockedUsers(ctx context.Context, broadcasterID string) ([]BlockedUser, error) {
	var all []BlockedUser
	cursor := ""
	for {
		q := url.Values{}
		q.Set("broadcaster_id", broadcasterID)
		q.Set("first", strconv.Itoa(defaultPageSize))
		if cursor != "" {
			q.Set("after", cursor)
		}
		var page blocksPage
		if err := c.get(ctx, "/users/blocks", q, &page); err != nil {
			return all, err
		}
		all = append(all, page.Data...)
		if page.Pagination.Cursor == "" || len(page.Data) == 0 {
			return all, nil
		}
		cursor = page.Pagination.Cursor
	}
}

type BannedUser struct {
	UserID    string `json:"user_id"`
	UserLogin string `json:"user_login"`
	ExpiresAt string `json:"expires_at"`
}

// Permanent reports whether this entry is a ban rather than a timeout.
func (b BannedUser) Permanent() bool { return b.ExpiresAt == "" }

type bansPage struct {
	Data       []BannedUser `json:"data"`
	Pagination pagination   `json:"pagination"`
}

// BannedUsers walks the channel ban list, timeouts included.
func (c *Client) BannedUsers(ctx context.Context, broadcasterID string) ([]BannedUser, error) {
	var all []BannedUser
	cursor := ""
	for {
		q := url.Values{}
		q.Set("broadcaster_id", broadcasterID)
		q.Set("first", strconv.Itoa(defaultPageSize))
		if cursor != "" {
			q.Set("after", cursor)
		}
		var page bansPage
		if err := c.get(ctx, "/moderation/banned", q, &page); err != nil {
			return all, err
		}
		all = append(all, page.Data...)
		if page.Pagination.Cursor == "" || len(page.Data) == 0 {
			return all, nil
		}
		cursor = page.Pagination.Cursor
	}
}

// BlockUser adds target to the authenticated user's block list.
func (c *Client) BlockUser(ctx context.Context, targetID string) error {
	q := url.Values{}
	q.Set("target_user_id", targetID)
	return c.do(ctx, http.MethodPut, "/users/blocks", q, nil)
}

// UnblockUser removes target from the authenticated user's block list.
func (c *Client) UnblockUser(ctx context.Context, targetID string) error {
	q := url.Values{}
	q.Set("target_user_id", targetID)
	return c.do(ctx, http.MethodDelete, "/users/blocks", q, nil)
}
