package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// ListUsers returns the email of every active user in the account,
// following next_page_token pagination.
func (c *Client) ListUsers(ctx context.Context, pageSize int) ([]string, error) {
	var emails []string
	cursor := ""

	for {
		params := url.Values{}
		params.Set("page_size", strconv.Itoa(pageSize))
		params.Set("status", "active")
		if cursor != "" {
			params.Set("next_page_token", cursor)
		}

		body, err := c.Get(ctx, "/users", params)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		if body == nil {
			break
		}

		var page UsersPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode users page: %w", err)
		}
		for _, u := range page.Users {
			emails = append(emails, u.Email)
		}

		cursor = page.NextPageToken
		if cursor == "" {
			break
		}
	}
	return emails, nil
}
