package storage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"backend-navi/internal/apperr"
	"backend-navi/internal/db"
	"backend-navi/internal/logging"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store is the blob backend. *S3 implements it.
type Store interface {
	Upload(ctx context.Context, f File) (Object, error)
	UploadMany(ctx context.Context, files []File) ([]Object, error)
	Delete(ctx context.Context, objectURL string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	KeyFromURL(objectURL string) (string, error)
}

type Service struct {
	db     db.Querier
	store  Store
	limits Limits
}

func NewService(db db.Querier, store Store, limits Limits) *Service {
	return &Service{db: db, store: store, limits: limits}
}

// Upload checks type and size of every file, uploads them as one batch and
// records each object for the owner.
func (s *Service) Upload(ctx context.Context, ownerID string, files []File) ([]Object, error) {
	if len(files) == 0 {
		return nil, apperr.Validation("invalid request", apperr.FieldError{Field: "files", Message: "files is required"})
	}
	for _, f := range files {
		if err := s.check(f); err != nil {
			return nil, err
		}
	}
	if s.store == nil {
		return nil, apperr.Integration("file upload", errNoStore)
	}
	objects, err := s.store.UploadMany(ctx, files)
	if err != nil {
		return nil, err
	}
	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		for i := range objects {
			if err := saveObject(ctx, tx, ownerID, &objects[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, objects)
		return nil, err
	}
	return objects, nil
}

// discard removes blobs whose records could not be written.
func (s *Service) discard(ctx context.Context, objects []Object) {
	ctx = context.WithoutCancel(ctx)
	for _, obj := range objects {
		if err := s.store.Delete(ctx, obj.URL); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("key", obj.Key).Msg("cleanup after failed upload record")
		}
	}
}

// Put uploads a single generated file without the upload type checks.
func (s *Service) Put(ctx context.Context, ownerID string, f File) (Object, error) {
	if s.store == nil {
		return Object{}, apperr.Integration("file upload", errNoStore)
	}
	obj, err := s.store.Upload(ctx, f)
	if err != nil {
		return Object{}, err
	}
	if err := s.SaveObject(ctx, ownerID, &obj); err != nil {
		s.discard(ctx, []Object{obj})
		return Object{}, err
	}
	return obj, nil
}

func (s *Service) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.store == nil {
		return "", apperr.Integration("signed url", errNoStore)
	}
	return s.store.SignedURL(ctx, key, ttl)
}

// Delete removes one of the owner's objects by URL.
func (s *Service) Delete(ctx context.Context, ownerID, objectURL string) error {
	if s.store == nil {
		return apperr.Integration("file deletion", errNoStore)
	}
	key, err := s.store.KeyFromURL(objectURL)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM storage_objects WHERE key=$1 AND owner_id=$2`, key, ownerID)
	if err != nil {
		return fmt.Errorf("delete object record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("file not found")
	}
	return s.store.Delete(ctx, objectURL)
}

func (s *Service) SaveObject(ctx context.Context, ownerID string, obj *Object) error {
	return saveObject(ctx, s.db, ownerID, obj)
}

func saveObject(ctx context.Context, q db.Querier, ownerID string, obj *Object) error {
	obj.ID = uuid.NewString()
	err := q.QueryRow(ctx, `
		INSERT INTO storage_objects (id, owner_id, key, url, content_type, size)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, obj.ID, ownerID, obj.Key, obj.URL, obj.ContentType, obj.Size).Scan(&obj.CreatedAt)
	if err != nil {
		return apperr.FromDB(err, "file")
	}
	return nil
}

func (s *Service) check(f File) error {
	if len(s.limits.AllowedTypes) > 0 && !slices.Contains(s.limits.AllowedTypes, f.ContentType) {
		return apperr.Validation("invalid file type",
			apperr.FieldError{Field: "files", Message: fmt.Sprintf("%s: %s is not allowed", f.Name, f.ContentType)})
	}
	if s.limits.MaxFileSize > 0 && int64(len(f.Body)) > s.limits.MaxFileSize {
		return apperr.Validation("file too large",
			apperr.FieldError{Field: "files", Message: fmt.Sprintf("%s exceeds %d bytes", f.Name, s.limits.MaxFileSize)})
	}
	return nil
}
