package repository

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cppla/carecircle/models"
)

// AttachDocuments links unattached documents to owner. Documents already linked elsewhere are
// left alone.
func (s *Store) AttachDocuments(ctx context.Context, owner models.Target, documentIDs []uint) error {
	if len(documentIDs) == 0 {
		return nil
	}
	column, id := "post_id", owner.PostID
	if !owner.IsPost() {
		column, id = "reply_id", owner.ReplyID
	}
	err := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id IN ? AND post_id IS NULL AND reply_id IS NULL", documentIDs).
		UpdateColumn(column, id).Error
	return errors.Wrap(err, "repository:AttachDocuments: UpdateColumn")
}

func (s *Store) ListDocuments(ctx context.Context, owner models.Target) ([]models.Document, error) {
	column, id := "post_id", owner.PostID
	if !owner.IsPost() {
		column, id = "reply_id", owner.ReplyID
	}
	var docs []models.Document
	err := s.db.WithContext(ctx).Where(column+" = ?", id).Order("id ASC").Find(&docs).Error
	return docs, errors.Wrap(err, "repository:ListDocuments: Find")
}
