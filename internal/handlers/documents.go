package handlers

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/familyvault/backend/internal/middleware"
	"github.com/familyvault/backend/internal/models"
	"github.com/familyvault/backend/internal/services"
	"github.com/familyvault/backend/internal/storage"
	"github.com/familyvault/backend/pkg/logger"
	"github.com/familyvault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var documentSortFields = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"fileName":     "file_name",
	"documentType": "document_type",
	"fileSize":     "size",
}

type DocumentsHandler struct {
	DB      *gorm.DB
	Storage storage.Client
	Access  *services.AccessService
	Family  *services.FamilyService
}

func NewDocumentsHandler(db *gorm.DB, storageClient storage.Client, access *services.AccessService, family *services.FamilyService) *DocumentsHandler {
	return &DocumentsHandler{DB: db, Storage: storageClient, Access: access, Family: family}
}

func (h *DocumentsHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("document")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "no file uploaded")
	}

	fileName := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if fileName == "" || fileName == "." {
		return utils.Error(c, fiber.StatusBadRequest, "invalid filename")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(fileName))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	objectName := fmt.Sprintf("%s/%s/%s", currentUser.ID.String(), uuid.New().String(), fileName)
	if err := h.Storage.Upload(c.Context(), objectName, stream, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed storing file")
	}

	// Bytes land in storage before metadata validation, so a rejected upload
	// must clean up the object it already wrote.
	documentType := strings.TrimSpace(c.FormValue("documentType"))
	if documentType == "" {
		if cleanupErr := h.Storage.Delete(c.Context(), objectName); cleanupErr != nil {
			logger.Error("upload_cleanup_failed", cleanupErr, map[string]interface{}{
				"object_name": objectName,
			})
		}
		return utils.Error(c, fiber.StatusBadRequest, "please provide a document type")
	}

	doc := models.Document{
		OwnerID:      currentUser.ID,
		FileName:     fileName,
		MimeType:     contentType,
		Size:         fileHeader.Size,
		DocumentType: documentType,
		Description:  strings.TrimSpace(c.FormValue("description")),
		StoragePath:  objectName,
	}

	if err := h.DB.Create(&doc).Error; err != nil {
		if cleanupErr := h.Storage.Delete(c.Context(), objectName); cleanupErr != nil {
			logger.Error("upload_cleanup_failed", cleanupErr, map[string]interface{}{
				"object_name": objectName,
			})
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating document record")
	}

	logger.InfoWithUser(currentUser.ID.String(), "document_uploaded", map[string]interface{}{
		"document_id":   doc.ID.String(),
		"file_name":     fileName,
		"file_size":     fileHeader.Size,
		"mime_type":     contentType,
		"document_type": documentType,
	})

	doc.SharedWith = []uuid.UUID{}
	return utils.Success(c, fiber.StatusCreated, doc)
}

// List returns the actor's documents. ?owned=true restricts to owned,
// ?shared=true to shared-with, both to the union; the default is owned.
func (h *DocumentsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c)
	sort := utils.ParseSort(c, documentSortFields, "created_at")

	showShared := c.Query("shared") == "true"
	showOwned := c.Query("owned") == "true"

	sharedSubquery := h.DB.Model(&models.DocumentShare{}).
		Select("document_id").
		Where("user_id = ?", currentUser.ID)

	baseQuery := h.DB.Model(&models.Document{})
	switch {
	case showShared && showOwned:
		baseQuery = baseQuery.Where("owner_id = ? OR id IN (?)", currentUser.ID, sharedSubquery)
	case showShared:
		baseQuery = baseQuery.Where("id IN (?)", sharedSubquery)
	default:
		baseQuery = baseQuery.Where("owner_id = ?", currentUser.ID)
	}

	// Session boundary so Count does not leak its statement into Find.
	baseQuery = baseQuery.Session(&gorm.Session{})

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting documents")
	}

	var docs []models.Document
	if err := utils.ApplyPagination(utils.ApplySort(baseQuery, sort), p).Find(&docs).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing documents")
	}

	if err := h.attachSharedWith(c, docs); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading share lists")
	}

	return utils.Paginated(c, docs, len(docs), p.Page, p.Limit, total)
}

func (h *DocumentsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	doc, errResp := h.loadDocument(c)
	if doc == nil {
		return errResp
	}

	if !h.Access.CanViewDocument(c.Context(), currentUser.ID, doc) {
		return utils.Error(c, fiber.StatusForbidden, "not authorized to access this document")
	}

	docs := []models.Document{*doc}
	if err := h.attachSharedWith(c, docs); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading share list")
	}

	return utils.Success(c, fiber.StatusOK, docs[0])
}

func (h *DocumentsHandler) Download(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	doc, errResp := h.loadDocument(c)
	if doc == nil {
		return errResp
	}

	if !h.Access.CanViewDocument(c.Context(), currentUser.ID, doc) {
		return utils.Error(c, fiber.StatusForbidden, "not authorized to download this document")
	}

	reader, size, err := h.Storage.Download(c.Context(), doc.StoragePath)
	if err != nil {
		// Metadata says the document exists, so missing bytes are a
		// server-side integrity fault, not an ordinary not-found.
		if errors.Is(err, storage.ErrObjectNotFound) {
			logger.Error("document_file_missing", err, map[string]interface{}{
				"document_id":  doc.ID.String(),
				"storage_path": doc.StoragePath,
			})
			return utils.Error(c, fiber.StatusInternalServerError, "file not found on the server")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed downloading file")
	}

	logger.InfoWithUser(currentUser.ID.String(), "document_downloaded", map[string]interface{}{
		"document_id": doc.ID.String(),
		"file_name":   doc.FileName,
		"file_size":   doc.Size,
	})

	c.Set("Content-Type", doc.MimeType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	return c.SendStream(reader, int(size))
}

type updateDocumentRequest struct {
	DocumentType *string `json:"documentType"`
	Description  *string `json:"description"`
}

// Update mutates metadata only; owner, file reference, filename, MIME type
// and size are immutable after creation.
func (h *DocumentsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	doc, errResp := h.loadDocument(c)
	if doc == nil {
		return errResp
	}

	if !h.Access.CanMutateDocument(currentUser.ID, doc) {
		return utils.Error(c, fiber.StatusForbidden, "not authorized to update this document")
	}

	var req updateDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.DocumentType != nil {
		value := strings.TrimSpace(*req.DocumentType)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "documentType cannot be empty")
		}
		updates["document_type"] = value
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.Document{}).Where("id = ?", doc.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating document")
	}

	var updated models.Document
	if err := h.DB.First(&updated, "id = ?", doc.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated document")
	}

	logger.InfoWithUser(currentUser.ID.String(), "document_updated", map[string]interface{}{
		"document_id": doc.ID.String(),
	})

	docs := []models.Document{updated}
	if err := h.attachSharedWith(c, docs); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading share list")
	}

	return utils.Success(c, fiber.StatusOK, docs[0])
}

func (h *DocumentsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	doc, errResp := h.loadDocument(c)
	if doc == nil {
		return errResp
	}

	if !h.Access.CanMutateDocument(currentUser.ID, doc) {
		return utils.Error(c, fiber.StatusForbidden, "not authorized to delete this document")
	}

	if err := h.DB.Delete(&models.DocumentShare{}, "document_id = ?", doc.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting document shares")
	}
	if err := h.DB.Delete(&models.Document{}, "id = ?", doc.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting document")
	}

	// The metadata record is gone; losing the file cleanup only leaks bytes,
	// so it never fails the request.
	if err := h.Storage.Delete(c.Context(), doc.StoragePath); err != nil {
		logger.Error("document_file_delete_failed", err, map[string]interface{}{
			"document_id":  doc.ID.String(),
			"storage_path": doc.StoragePath,
		})
	}

	logger.InfoWithUser(currentUser.ID.String(), "document_deleted", map[string]interface{}{
		"document_id": doc.ID.String(),
		"file_name":   doc.FileName,
	})

	return utils.Message(c, fiber.StatusOK, "document deleted successfully", fiber.Map{})
}

type shareDocumentRequest struct {
	FamilyMemberIDs []string `json:"familyMemberIds"`
}

// Share grows the shared-with set with the subset of candidates that are
// currently family members of the owner. Non-family candidates are dropped
// with a warning rather than failing the request.
func (h *DocumentsHandler) Share(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req shareDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.FamilyMemberIDs == nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid family member ids provided")
	}

	candidates := make([]uuid.UUID, 0, len(req.FamilyMemberIDs))
	for _, raw := range req.FamilyMemberIDs {
		id, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid family member ids provided")
		}
		candidates = append(candidates, id)
	}

	doc, errResp := h.loadDocument(c)
	if doc == nil {
		return errResp
	}

	if !h.Access.CanMutateDocument(currentUser.ID, doc) {
		return utils.Error(c, fiber.StatusForbidden, "not authorized to share this document")
	}

	memberIDs, err := h.Family.MemberIDs(c.Context(), currentUser.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading family members")
	}
	familySet := make(map[uuid.UUID]bool, len(memberIDs))
	for _, id := range memberIDs {
		familySet[id] = true
	}

	valid := make([]uuid.UUID, 0, len(candidates))
	dropped := make([]string, 0)
	for _, id := range candidates {
		if familySet[id] {
			valid = append(valid, id)
		} else {
			dropped = append(dropped, id.String())
		}
	}

	if len(dropped) > 0 {
		logger.WarnWithUser(currentUser.ID.String(), "share_candidates_dropped", map[string]interface{}{
			"document_id": doc.ID.String(),
			"dropped_ids": strings.Join(dropped, ","),
		})
	}

	for _, id := range valid {
		share := models.DocumentShare{DocumentID: doc.ID, UserID: id}
		if err := h.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&share).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed sharing document")
		}
	}

	logger.InfoWithUser(currentUser.ID.String(), "document_shared", map[string]interface{}{
		"document_id":  doc.ID.String(),
		"shared_count": len(valid),
	})

	var updated models.Document
	if err := h.DB.First(&updated, "id = ?", doc.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated document")
	}

	docs := []models.Document{updated}
	if err := h.attachSharedWith(c, docs); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading share list")
	}

	return utils.Success(c, fiber.StatusOK, docs[0])
}

// loadDocument parses the :id param and fetches the record. When the document
// cannot be served it writes the error response itself and returns a nil
// document; callers must propagate the second value unchanged.
func (h *DocumentsHandler) loadDocument(c *fiber.Ctx) (*models.Document, error) {
	docID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, utils.Error(c, fiber.StatusBadRequest, "invalid document id")
	}

	var doc models.Document
	if err := h.DB.First(&doc, "id = ?", docID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.Error(c, fiber.StatusNotFound, "document not found")
		}
		return nil, utils.Error(c, fiber.StatusInternalServerError, "failed loading document")
	}

	return &doc, nil
}

func (h *DocumentsHandler) attachSharedWith(c *fiber.Ctx, docs []models.Document) error {
	for i := range docs {
		docs[i].SharedWith = []uuid.UUID{}
	}
	if len(docs) == 0 {
		return nil
	}

	docIDs := make([]uuid.UUID, len(docs))
	for i, doc := range docs {
		docIDs[i] = doc.ID
	}

	var shares []models.DocumentShare
	if err := h.DB.WithContext(c.Context()).
		Where("document_id IN ?", docIDs).
		Order("created_at ASC").
		Find(&shares).Error; err != nil {
		return err
	}

	byDoc := make(map[uuid.UUID][]uuid.UUID, len(docs))
	for _, share := range shares {
		byDoc[share.DocumentID] = append(byDoc[share.DocumentID], share.UserID)
	}

	for i := range docs {
		if ids, ok := byDoc[docs[i].ID]; ok {
			docs[i].SharedWith = ids
		}
	}
	return nil
}
