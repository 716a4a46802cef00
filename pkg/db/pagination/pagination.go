package pagination

import (
	"encoding/base64"
	"strconv"
	"strings"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

// Pagination carries the common page token / page size query parameters.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Limit clamps the requested page size into a sane range.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return defaultPageSize
	}
	if p.PageSize > maxPageSize {
		return maxPageSize
	}
	return p.PageSize
}

// EncodeToken builds an opaque cursor from the last row's ID.
func EncodeToken(lastID int64) string {
	if lastID == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(lastID, 10)))
}

// DecodeToken parses an opaque cursor back into a row ID. Malformed tokens
// decode to zero, which reads from the first page.
func DecodeToken(token string) int64 {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
