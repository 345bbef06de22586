package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

func rangeParams(from, to time.Time, pageSize int, cursor string) url.Values {
	params := url.Values{}
	params.Set("from", from.Format(dateLayout))
	params.Set("to", to.Format(dateLayout))
	params.Set("page_size", strconv.Itoa(pageSize))
	if cursor != "" {
		params.Set("next_page_token", cursor)
	}
	return params
}

// ListMeetingRecordings returns one page of a user's cloud meeting recordings
// in [from, to]. A nil page means the user has no data for the range.
func (c *Client) ListMeetingRecordings(ctx context.Context, userEmail string, from, to time.Time, pageSize int, cursor string) (*MeetingsPage, error) {
	path := "/users/" + url.PathEscape(userEmail) + "/recordings"
	body, err := c.Get(ctx, path, rangeParams(from, to, pageSize, cursor))
	if err != nil {
		return nil, fmt.Errorf("list meeting recordings for %s: %w", userEmail, err)
	}
	if body == nil {
		return nil, nil
	}
	var page MeetingsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode meeting recordings page: %w", err)
	}
	return &page, nil
}

// ListWebinarRecordings returns one page of a user's webinar recordings in [from, to].
func (c *Client) ListWebinarRecordings(ctx context.Context, userEmail string, from, to time.Time, pageSize int, cursor string) (*WebinarsPage, error) {
	path := "/users/" + url.PathEscape(userEmail) + "/webinars/recordings"
	body, err := c.Get(ctx, path, rangeParams(from, to, pageSize, cursor))
	if err != nil {
		return nil, fmt.Errorf("list webinar recordings for %s: %w", userEmail, err)
	}
	if body == nil {
		return nil, nil
	}
	var page WebinarsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode webinar recordings page: %w", err)
	}
	return &page, nil
}

// ListPhoneRecordings returns one page of a user's phone recordings in [from, to].
// A nil page also covers users without a phone license.
func (c *Client) ListPhoneRecordings(ctx context.Context, userEmail string, from, to time.Time, pageSize int, cursor string) (*PhonePage, error) {
	path := "/phone/users/" + url.PathEscape(userEmail) + "/recordings"
	body, err := c.Get(ctx, path, rangeParams(from, to, pageSize, cursor))
	if err != nil {
		return nil, fmt.Errorf("list phone recordings for %s: %w", userEmail, err)
	}
	if body == nil {
		return nil, nil
	}
	var page PhonePage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode phone recordings page: %w", err)
	}
	return &page, nil
}
