package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"strings"

	"expediente_flow_go/models"

	"gorm.io/gorm"
)

const (
	// MaxDocumentSize limits uploads to 25MB
	MaxDocumentSize = 25 * 1024 * 1024
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentTooLarge = errors.New("document exceeds maximum allowed size")
	ErrDocumentType     = errors.New("document type not allowed")
)

// Allowed MIME types for case documents
var allowedDocumentTypes = map[string]bool{
	"application/pdf":    true,
	"image/png":          true,
	"image/jpeg":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// ValidateDocumentUpload checks size and MIME type before storage is touched
func ValidateDocumentUpload(file *multipart.FileHeader) error {
	if file.Size > MaxDocumentSize {
		return ErrDocumentTooLarge
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		return ErrDocumentType
	}
	// Strip parameters like "; charset=..."
	if idx := strings.Index(contentType, ";"); idx > 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !allowedDocumentTypes[contentType] {
		return fmt.Errorf("%w: %s", ErrDocumentType, contentType)
	}
	return nil
}

// UploadDocument stores the file and records its metadata. A document with
// the same title on the same case becomes a new version; the previous current
// version is flagged as superseded.
func UploadDocument(ctx context.Context, db *gorm.DB, exp *models.Expediente, file *multipart.FileHeader, title, uploadedByID string) (*models.CaseDocument, error) {
	if err := ValidateDocumentUpload(file); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = file.Filename
	}

	key := GenerateDocumentKey(exp.ID, file.Filename)
	result, err := Storage.Upload(ctx, file, key)
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := &models.CaseDocument{
		ExpedienteID:     exp.ID,
		StageName:        exp.CurrentStage,
		Title:            title,
		Version:          1,
		IsCurrent:        true,
		StorageKey:       result.Key,
		FileName:         result.FileName,
		FileOriginalName: result.FileOriginalName,
		FileSize:         result.FileSize,
		MimeType:         result.MimeType,
		UploadedByID:     uploadedByID,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var latest models.CaseDocument
		err := tx.Where("expediente_id = ? AND title = ? AND is_current = ?", exp.ID, title, true).
			First(&latest).Error
		if err == nil {
			doc.Version = latest.Version + 1
			if err := tx.Model(&models.CaseDocument{}).
				Where("id = ?", latest.ID).
				Update("is_current", false).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Create(doc).Error
	})
	if err != nil {
		// Metadata failed: remove the orphaned blob, best effort
		if delErr := Storage.Delete(ctx, result.Key); delErr != nil {
			return nil, fmt.Errorf("failed to record document (cleanup also failed: %v): %w", delErr, err)
		}
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	return doc, nil
}

// GetDocument loads a document belonging to the given case
func GetDocument(db *gorm.DB, expedienteID, documentID string) (*models.CaseDocument, error) {
	var doc models.CaseDocument
	err := db.Preload("UploadedBy").
		Where("id = ? AND expediente_id = ?", documentID, expedienteID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns the case's documents. When currentOnly is set, only
// the latest version of each title is returned.
func ListDocuments(db *gorm.DB, expedienteID string, currentOnly bool) ([]models.CaseDocument, error) {
	query := db.Preload("UploadedBy").
		Where("expediente_id = ?", expedienteID)
	if currentOnly {
		query = query.Where("is_current = ?", true)
	}

	var docs []models.CaseDocument
	err := query.Order("title ASC, version DESC").Find(&docs).Error
	return docs, err
}

// ListDocumentVersions returns every version of one document title, newest first
func ListDocumentVersions(db *gorm.DB, expedienteID, title string) ([]models.CaseDocument, error) {
	var docs []models.CaseDocument
	err := db.Preload("UploadedBy").
		Where("expediente_id = ? AND title = ?", expedienteID, title).
		Order("version DESC").
		Find(&docs).Error
	return docs, err
}

// OpenDocument returns a reader over the document's stored bytes
func OpenDocument(ctx context.Context, db *gorm.DB, expedienteID, documentID string) (*models.CaseDocument, io.ReadCloser, string, error) {
	doc, err := GetDocument(db, expedienteID, documentID)
	if err != nil {
		return nil, nil, "", err
	}

	reader, contentType, err := Storage.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to open stored document: %w", err)
	}
	if doc.MimeType != "" {
		contentType = doc.MimeType
	}
	return doc, reader, contentType, nil
}

// DeleteDocument soft-deletes the metadata row and removes the stored bytes.
// If a previous version exists it becomes current again.
func DeleteDocument(ctx context.Context, db *gorm.DB, expedienteID, documentID string) error {
	doc, err := GetDocument(db, expedienteID, documentID)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(doc).Error; err != nil {
			return err
		}

		if doc.IsCurrent {
			var previous models.CaseDocument
			err := tx.Where("expediente_id = ? AND title = ? AND version < ?", expedienteID, doc.Title, doc.Version).
				Order("version DESC").
				First(&previous).Error
			if err == nil {
				return tx.Model(&models.CaseDocument{}).
					Where("id = ?", previous.ID).
					Update("is_current", true).Error
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := Storage.Delete(ctx, doc.StorageKey); err != nil {
		// Metadata is already gone; the orphaned blob is tolerable
		log.Printf("[WARNING] Failed to delete stored document %s: %v", doc.StorageKey, err)
	}
	return nil
}
