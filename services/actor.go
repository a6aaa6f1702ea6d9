package services

// Actor is the caller of a mutating operation. Roles are resolved outside this package;
// Moderator is already derived from them.
type Actor struct {
	UserID    uint
	Moderator bool
}

func (a Actor) canModify(authorID uint) bool {
	return a.Moderator || (a.UserID != 0 && a.UserID == authorID)
}

func normalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

const maxPageLimit = 100

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
