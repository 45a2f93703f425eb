package option

import (
	"strconv"
	"time"

	"github.com/smallbiznis/netbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type paginationOption struct {
	page pagination.Pagination
}

// ApplyPagination applies keyset pagination ordered by created_at desc, id desc.
// One extra row is fetched so callers can tell whether more pages exist.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return paginationOption{page: page}
}

func (o paginationOption) Apply(stmt *gorm.DB) *gorm.DB {
	size := int(pagination.ClampSize(int32(o.page.PageSize)))

	if o.page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(o.page.PageToken)
		if err == nil && cursor != nil {
			id, idErr := strconv.ParseInt(cursor.ID, 10, 64)
			createdAt, timeErr := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
			switch {
			case idErr == nil && timeErr == nil:
				stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
			case idErr == nil:
				stmt = stmt.Where("id < ?", id)
			}
		}
	}

	return stmt.Limit(size + 1)
}
