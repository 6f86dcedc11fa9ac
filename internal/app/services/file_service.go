package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"regexp"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/app/auth"
	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/repositories"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/filestorage"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/metrics"
)

// AllowedUploadTypes are the content types accepted for any slot
var AllowedUploadTypes = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileService binds uploaded blobs to owner slots
type FileService interface {
	Upload(ctx context.Context, actor models.Actor, kind models.OwnerKind, ownerID int64, slot string, file *multipart.FileHeader) (*models.StoredFile, error)
	Delete(ctx context.Context, actor models.Actor, kind models.OwnerKind, ownerID int64, slot, fileURL string) error
	List(ctx context.Context, actor models.Actor, kind models.OwnerKind, ownerID int64) (*models.FileSet, error)
	RetryDeletions(ctx context.Context, limit, maxAttempts int) (int, error)
}

type fileServiceImpl struct {
	fileRepo     repositories.IFileRepository
	blobRepo     repositories.IBlobDeletionRepository
	transactor   db.Transactor
	store        filestorage.BlobStore
	authzService *auth.AuthorizationService
	maxBytes     int64
	logger       zerolog.Logger
}

// NewFileService creates a new FileService
func NewFileService(
	fileRepo repositories.IFileRepository,
	blobRepo repositories.IBlobDeletionRepository,
	transactor db.Transactor,
	store filestorage.BlobStore,
	authzService *auth.AuthorizationService,
	maxBytes int64,
	logger zerolog.Logger,
) FileService {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &fileServiceImpl{
		fileRepo:     fileRepo,
		blobRepo:     blobRepo,
		transactor:   transactor,
		store:        store,
		authzService: authzService,
		maxBytes:     maxBytes,
		logger:       logger,
	}
}

// Upload stores the blob first and then records it. Single slots replace their
// previous file, whose blob is queued for deletion in the same transaction.
func (s *fileServiceImpl) Upload(ctx context.Context, actor models.Actor, kind models.OwnerKind, ownerID int64, slot string, file *multipart.FileHeader) (*models.StoredFile, error) {
	def, ok := models.LookupSlot(kind, slot)
	if !ok {
		return nil, apperrors.ErrUnknownSlot
	}
	if err := s.authzService.AuthorizeFileOwner(ctx, actor, kind, ownerID); err != nil {
		return nil, err
	}
	if file == nil {
		return nil, apperrors.NewValidationError("file is required", "file")
	}
	if file.Size > s.maxBytes {
		return nil, apperrors.ErrFileTooLarge
	}

	data, err := s.readUpload(file)
	if err != nil {
		return nil, err
	}
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), AllowedUploadTypes...) {
		s.logger.Info().Str("detected", mtype.String()).Str("slot", slot).Msg("Rejected upload type")
		return nil, apperrors.ErrUnsupportedFileType
	}

	key := fmt.Sprintf("%s/%d/%s/%s-%s", kind, ownerID, slot, uuid.NewString(), sanitizeFilename(file.Filename))
	url, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mtype.String())
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Blob upload failed")
		return nil, apperrors.NewCustomError(apperrors.ErrInternal, "file storage is unavailable")
	}

	stored := &models.StoredFile{
		OwnerKind: kind,
		OwnerID:   ownerID,
		Slot:      slot,
		FileURL:   url,
		FileSize:  int64(len(data)),
		FileType:  mtype.String(),
	}
	var replaced []*models.BlobDeletion
	err = s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		fileRepo := s.fileRepo.WithTx(tx)

		if !def.Multi {
			previous, err := fileRepo.ListSlotForUpdate(ctx, kind, ownerID, slot)
			if err != nil {
				return err
			}
			if len(previous) > 0 {
				ids := make([]int64, 0, len(previous))
				urls := make([]string, 0, len(previous))
				for _, f := range previous {
					ids = append(ids, f.ID)
					urls = append(urls, f.FileURL)
				}
				if err := fileRepo.DeleteByIDs(ctx, ids); err != nil {
					return err
				}
				replaced, err = s.enqueue(ctx, s.blobRepo.WithTx(tx), urls)
				if err != nil {
					return err
				}
			}
		}

		_, err := fileRepo.Create(ctx, stored)
		return err
	})
	if err != nil {
		// compensate: the new blob has no row pointing at it
		if delErr := s.store.Delete(ctx, url); delErr != nil {
			s.logger.Error().Err(delErr).Str("url", url).Msg("Failed to remove orphaned upload")
		}
		return nil, err
	}

	s.purge(ctx, replaced)
	s.logger.Info().
		Str("ownerKind", string(kind)).
		Int64("ownerID", ownerID).
		Str("slot", slot).
		Int64("size", stored.FileSize).
		Msg("File uploaded")
	return stored, nil
}

// Delete removes a file reference and queues its blob in one transaction,
// then tries the blob delete right away. Failures stay queued for the retry job.
func (s *fileServiceImpl) Delete(ctx context.Context, actor models.Actor, kind models.OwnerKind, ownerID int64, slot, fileURL string) error {
	if _, ok := models.LookupSlot(kind, slot); !ok {
		return apperrors.ErrUnknownSlot
	}
	if fileURL == "" {
		return apperrors.NewValidationError("fileUrl is required", "fileUrl")
	}
	if err := s.authzService.AuthorizeFileOwner(ctx, actor, kind, ownerID); err != nil {
		return err
	}

	var queued []*models.BlobDeletion
	err := s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.fileRepo.WithTx(tx).DeleteByURL(ctx, kind, ownerID, slot, fileURL); err != nil {
			return err
		}
		var err error
		queued, err = s.enqueue(ctx, s.blobRepo.WithTx(tx), []string{fileURL})
		return err
	})
	if err != nil {
		return err
	}

	s.purge(ctx, queued)
	s.logger.Info().Str("ownerKind", string(kind)).Int64("ownerID", ownerID).Str("slot", slot).Msg("File deleted")
	return nil
}

// List returns the owner's files grouped by slot
func (s *fileServiceImpl) List(ctx context.Context, actor models.Actor, kind models.OwnerKind, ownerID int64) (*models.FileSet, error) {
	if err := s.authzService.AuthorizeFileOwner(ctx, actor, kind, ownerID); err != nil {
		return nil, err
	}
	files, err := s.fileRepo.ListByOwner(ctx, kind, ownerID)
	if err != nil {
		return nil, err
	}
	return models.NewFileSet(kind, ownerID, files), nil
}

// RetryDeletions processes pending outbox rows and returns how many blobs were removed.
// Rows stay locked while they are processed so concurrent workers skip them.
func (s *fileServiceImpl) RetryDeletions(ctx context.Context, limit, maxAttempts int) (int, error) {
	done := 0
	err := s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		blobRepo := s.blobRepo.WithTx(tx)
		pending, err := blobRepo.ListPending(ctx, limit, maxAttempts)
		if err != nil {
			return err
		}
		for _, d := range pending {
			ok, err := s.deleteBlob(ctx, blobRepo, d)
			if err != nil {
				return err
			}
			if ok {
				done++
			}
		}
		return nil
	})
	return done, err
}

func (s *fileServiceImpl) enqueue(ctx context.Context, blobRepo repositories.IBlobDeletionRepository, urls []string) ([]*models.BlobDeletion, error) {
	ids, err := blobRepo.Enqueue(ctx, urls...)
	if err != nil {
		return nil, err
	}
	out := make([]*models.BlobDeletion, 0, len(ids))
	for i, id := range ids {
		out = append(out, &models.BlobDeletion{ID: id, BlobURL: urls[i]})
	}
	return out, nil
}

// purge attempts queued deletions outside any transaction. Errors are logged only.
func (s *fileServiceImpl) purge(ctx context.Context, queued []*models.BlobDeletion) {
	for _, d := range queued {
		if _, err := s.deleteBlob(ctx, s.blobRepo, d); err != nil {
			s.logger.Warn().Err(err).Int64("deletionID", d.ID).Msg("Failed to record blob deletion outcome")
		}
	}
}

// deleteBlob removes one blob and records the attempt. A URL that no backend
// owns can never be removed, so it is closed as done.
func (s *fileServiceImpl) deleteBlob(ctx context.Context, blobRepo repositories.IBlobDeletionRepository, d *models.BlobDeletion) (bool, error) {
	err := s.store.Delete(ctx, d.BlobURL)
	switch {
	case err == nil:
		metrics.RecordBlobDeletion(true)
		return true, blobRepo.MarkDone(ctx, d.ID)
	case errors.Is(err, filestorage.ErrForeignURL):
		s.logger.Warn().Str("url", d.BlobURL).Msg("Dropping deletion of foreign blob URL")
		return false, blobRepo.MarkDone(ctx, d.ID)
	}
	metrics.RecordBlobDeletion(false)
	s.logger.Warn().Err(err).Str("url", d.BlobURL).Msg("Blob deletion failed, will retry")
	return false, blobRepo.MarkFailed(ctx, d.ID, err.Error())
}

func (s *fileServiceImpl) readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, apperrors.NewBadRequestError("could not read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxBytes+1))
	if err != nil {
		return nil, apperrors.NewBadRequestError("could not read uploaded file")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperrors.ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("file is empty", "file")
	}
	return data, nil
}

func sanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(filepath.Base(name), "_")
	if name == "" || name == "." || name == "_" {
		name = "file"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}
