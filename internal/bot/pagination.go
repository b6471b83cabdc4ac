package bot

import (
	"market/internal/models"
)

// Navigation is the pager row of a listing.
//
// Rules:
// 1. Back moves one page towards the start and stops at offset 0
// 2. Forward stays in place when the displayed page is short (no more data)
// 3. Page is offset/limit+1, Pages is ceil(total/limit)
type Navigation struct {
	Back    models.PageCursor
	Forward models.PageCursor
	Page    int
	Pages   int
}

// ComputeNavigation derives the pager from the page just displayed.
// The cursor must already be validated.
func ComputeNavigation(cursor models.PageCursor, displayed, total int) Navigation {
	limit, offset := cursor.Limit, cursor.Offset

	back := offset - limit
	if back < 0 {
		back = 0
	}

	forward := offset + limit
	if displayed < limit {
		forward = offset
	}

	return Navigation{
		Back:    models.PageCursor{Limit: limit, Offset: back},
		Forward: models.PageCursor{Limit: limit, Offset: forward},
		Page:    offset/limit + 1,
		Pages:   (total + limit - 1) / limit,
	}
}
