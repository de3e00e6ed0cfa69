package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const documentColumns = `id, title, value, plain_text, content_hash, updated_by_name, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var item Document
	err := row.Scan(&item.ID, &item.Title, &item.Value, &item.PlainText, &item.ContentHash, &item.UpdatedBy, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

// GetDocument returns sql.ErrNoRows when the document does not exist.
func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	item, err := scanDocument(s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, documentID))
	if err != nil {
		return Document{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, value, plain_text, content_hash, updated_by_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.Title, item.Value, item.PlainText, item.ContentHash, item.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// UpdateDocumentValue stores a new persisted value. It reports false when no
// document matched.
func (s *PostgresStore) UpdateDocumentValue(ctx context.Context, documentID, value, plainText, contentHash, updatedBy string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET value=$2, plain_text=$3, content_hash=$4, updated_by_name=$5, updated_at=NOW()
		WHERE id=$1
	`, documentID, value, plainText, contentHash, updatedBy)
	if err != nil {
		return false, fmt.Errorf("update document value: %w", err)
	}
	return rowsChanged(res)
}

func (s *PostgresStore) UpdateDocumentTitle(ctx context.Context, documentID, title, updatedBy string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET title=$2, updated_by_name=$3, updated_at=NOW()
		WHERE id=$1
	`, documentID, title, updatedBy)
	if err != nil {
		return false, fmt.Errorf("update document title: %w", err)
	}
	return rowsChanged(res)
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return rowsChanged(res)
}

func (s *PostgresStore) InsertFileAsset(ctx context.Context, asset FileAsset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_assets (name, original_name, content_type, size_bytes, document_id, uploaded_by_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO NOTHING
	`, asset.Name, asset.OriginalName, asset.ContentType, asset.SizeBytes, asset.DocumentID, asset.UploadedBy)
	if err != nil {
		return fmt.Errorf("insert file asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFileAssets(ctx context.Context, documentID string) ([]FileAsset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, original_name, content_type, size_bytes, document_id, uploaded_by_name, uploaded_at
		FROM file_assets
		WHERE document_id=$1
		ORDER BY uploaded_at DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list file assets: %w", err)
	}
	defer rows.Close()

	items := make([]FileAsset, 0)
	for rows.Next() {
		var item FileAsset
		var docID sql.NullString
		if err := rows.Scan(&item.Name, &item.OriginalName, &item.ContentType, &item.SizeBytes, &docID, &item.UploadedBy, &item.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan file asset: %w", err)
		}
		if docID.Valid {
			id := docID.String
			item.DocumentID = &id
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file assets: %w", err)
	}
	return items, nil
}

func rowsChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
