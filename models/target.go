package models

// Target addresses exactly one post or one reply. Zero means unset.
type Target struct {
	PostID  uint `json:"post_id,omitempty"`
	ReplyID uint `json:"reply_id,omitempty"`
}

// PostTarget returns a Target for the given post.
func PostTarget(id uint) Target { return Target{PostID: id} }

// ReplyTarget returns a Target for the given reply.
func ReplyTarget(id uint) Target { return Target{ReplyID: id} }

// Valid reports whether exactly one of PostID and ReplyID is set.
func (t Target) Valid() bool {
	return (t.PostID != 0) != (t.ReplyID != 0)
}

// IsPost reports whether the target is a post.
func (t Target) IsPost() bool { return t.PostID != 0 && t.ReplyID == 0 }
