package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
)

// GetDocumentsHandler lists the documents of a case. ?all=true includes
// superseded versions.
func GetDocumentsHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	currentOnly := c.QueryParam("all") != "true"
	docs, err := services.ListDocuments(db.DB, exp.ID, currentOnly)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load documents"})
	}

	return c.JSON(http.StatusOK, echo.Map{"documents": docs})
}

// UploadDocumentHandler stores a multipart file upload against a case
func UploadDocumentHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "file is required"})
	}
	title := sanitize(c.FormValue("title"))

	user := middleware.GetCurrentUser(c)
	doc, err := services.UploadDocument(c.Request().Context(), db.DB, exp, file, title, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDocumentTooLarge):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "file exceeds the maximum allowed size"})
		case errors.Is(err, services.ErrDocumentType):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "file type not allowed"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to upload document"})
		}
	}

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionCreate, "CaseDocument", doc.ID, doc.Title,
		fmt.Sprintf("Documento cargado en expediente %s (v%d)", exp.FileNumber, doc.Version), nil)

	return c.JSON(http.StatusCreated, doc)
}

// DownloadDocumentHandler streams the stored bytes of a document
func DownloadDocumentHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	doc, reader, contentType, err := services.OpenDocument(c.Request().Context(), db.DB, exp.ID, c.Param("docID"))
	if err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Document not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to open document"})
	}
	defer reader.Close()

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionDownload, "CaseDocument", doc.ID, doc.Title,
		"Documento descargado del expediente "+exp.FileNumber, nil)

	downloadName := doc.FileOriginalName
	if downloadName == "" {
		downloadName = doc.FileName
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, downloadName))

	return c.Stream(http.StatusOK, contentType, reader)
}

// DeleteDocumentHandler removes a document version
func DeleteDocumentHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	doc, err := services.GetDocument(db.DB, exp.ID, c.Param("docID"))
	if err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Document not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load document"})
	}

	if err := services.DeleteDocument(c.Request().Context(), db.DB, exp.ID, doc.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete document"})
	}

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionDelete, "CaseDocument", doc.ID, doc.Title,
		"Documento eliminado del expediente "+exp.FileNumber, nil)

	return c.JSON(http.StatusOK, echo.Map{"message": "Document deleted"})
}
