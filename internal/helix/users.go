package helix

import (
	"context"
	"net/url"

	"modwatch/pkg/logx"
)

type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

type usersPage struct {
	Data []User `json:"data"`
}

// UsersByLogin looks up up to 100 users per request. Unknown logins are
// simply absent from the result.
func (c *Client) UsersByLogin(ctx context.Context, logins []string) ([]User, error) {
	return c.users(ctx, "login", logins)
}

// UsersByID is the inverse lookup, same batching rules.
func (c *Client) UsersByID(ctx context.Context, ids []string) ([]User, error) {
	return c.users(ctx, "id", ids)
}

func (c *Client) users(ctx context.Context, key string, values []string) ([]User, error) {
	var all []User
	for len(values) > 0 {
		batch := values
		if len(batch) > defaultPageSize {
			batch = batch[:defaultPageSize]
		}
		values = values[len(batch):]

		q := url.Values{}
		for _, v := range batch {
			q.Add(key, v)
		}
		var page usersPage
		if err := c.get(ctx, "/users", q, &page); err != nil {
			return all, err
		}
		all = append(all, page.Data...)
	}
	return all, nil
}

// IDsToNames resolves user IDs to display names, best effort: a failed batch
// is logged and skipped so one bad page does not abort a long export.
func (c *Client) IDsToNames(ctx context.Context, ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for len(ids) > 0 {
		batch := ids
		if len(batch) > defaultPageSize {
			batch = batch[:defaultPageSize]
		}
		ids = ids[len(batch):]

		users, err := c.UsersByID(ctx, batch)
		if err != nil {
			c.log.Warn("user id batch lookup failed", logx.Int("batch", len(batch)), logx.Err(err))
			continue
		}
		for _, u := range users {
			name := u.DisplayName
			if name == "" {
				name = u.Login
			}
			out[u.ID] = name
		}
	}
	return out
}

// NamesToIDs resolves logins to user IDs, best effort per batch.
func (c *Client) NamesToIDs(ctx context.Context, names []string) map[string]string {
	out := make(map[string]string, len(names))
	for len(names) > 0 {
		batch := names
		if len(batch) > defaultPageSize {
			batch = batch[:defaultPageSize]
		}
		names = names[len(batch):]

		users, err := c.UsersByLogin(ctx, batch)
		if err != nil {
			c.log.Warn("login batch lookup failed", logx.Int("batch", len(batch)), logx.Err(err))
			continue
		}
		for _, u := range users {
			out[u.Login] = u.ID
		}
	}
	return out
}
