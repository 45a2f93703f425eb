package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidPageToken = errors.New("invalid page token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size" validate:"gte=0,lte=250"`
}

// Cursor marks the last row of a page in created_at desc, id desc order.
type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

// ClampSize applies the default and maximum page size.
func ClampSize(size int32) int32 {
	switch {
	case size <= 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	default:
		return size
	}
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidPageToken
	}
	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidPageToken
	}
	if _, err := strconv.ParseInt(cursor.ID, 10, 64); err != nil {
		return nil, ErrInvalidPageToken
	}
	return &cursor, nil
}

// CursorAt encodes a page token for a row. An unencodable row yields "".
func CursorAt(id int64, createdAt time.Time) string {
	token, err := EncodeCursor(Cursor{
		ID:        strconv.FormatInt(id, 10),
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return ""
	}
	return token
}

// BuildCursorPageInfo expects data fetched with limit+1 rows.
func BuildCursorPageInfo[T any](data []*T, limit int32, extractCursor func(*T) string) *PageInfo {
	if len(data) <= int(limit) {
		return &PageInfo{HasMore: false}
	}
	return &PageInfo{
		HasMore:       true,
		NextPageToken: extractCursor(data[limit-1]),
	}
}

// Trim drops the lookahead row fetched by BuildCursorPageInfo callers.
func Trim[T any](data []*T, limit int32) []*T {
	if len(data) > int(limit) {
		return data[:limit]
	}
	return data
}
