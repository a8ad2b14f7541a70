package api

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sanjeevkumarraob/pdf-text-service/internal/auth"
	"github.com/sanjeevkumarraob/pdf-text-service/internal/document"
	"github.com/sanjeevkumarraob/pdf-text-service/pkg/recordstore"
	"github.com/sanjeevkumarraob/pdf-text-service/pkg/stream"
)

// Response messages shared with clients
const (
	msgUnauthorized  = "Unauthorized"
	msgNoFile        = "No file uploaded"
	msgDuplicateFile = "A file with this name already exists. Please rename the file or delete the existing one."
	msgSaveFailed    = "Failed to save extracted text"
	msgMissingID     = "Missing id"
	msgNotFound      = "Not found"
	msgDeleteFailed  = "Failed to delete"
)

const uploadField = "file"

// Handler handles API requests
type Handler struct {
	docProcessor  *document.Processor
	store         recordstore.Store
	authenticator *Authenticator
	logger        *slog.Logger
	chunkSize     int
	now           func() time.Time
}

// NewHandler creates a new handler
func NewHandler(
	docProcessor *document.Processor,
	store recordstore.Store,
	authenticator *Authenticator,
	logger *slog.Logger,
	chunkSize int,
) *Handler {
	return &Handler{
		docProcessor:  docProcessor,
		store:         store,
		authenticator: authenticator,
		logger:        logger,
		chunkSize:     chunkSize,
		now:           time.Now,
	}
}

// HealthCheck provides a simple health check endpoint
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Upload extracts the text of an uploaded PDF and stores it for the caller
func (h *Handler) Upload(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}
	ctx := c.Request.Context()
	logger := h.logger.With("userID", user.ID)

	part, err := filePart(c.Request)
	if err != nil {
		logger.Debug("upload without file part", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoFile})
		return
	}
	defer part.Close()

	fileName := part.FileName()
	logger = logger.With("fileName", fileName)

	// checked before reading the body so duplicates cost no extraction work
	exists, err := h.store.Exists(ctx, user.ID, fileName)
	if err != nil {
		logger.Error("duplicate check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgSaveFailed})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": msgDuplicateFile})
		return
	}

	data, err := stream.ReadLimited(part, h.chunkSize, h.docProcessor.Limits().MaxSizeBytes)
	if err != nil {
		logger.Warn("failed to read upload body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}

	result, err := h.docProcessor.Extract(ctx, document.UploadedDocument{
		Data:      data,
		MediaType: part.Header.Get("Content-Type"),
		FileName:  fileName,
	})
	if err != nil {
		var docErr *document.Error
		if errors.As(err, &docErr) && docErr.Kind == document.KindInvalidInput {
			c.JSON(http.StatusBadRequest, gin.H{"error": docErr.Message})
			return
		}
		logger.Error("extraction failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	err = h.store.Insert(ctx, &recordstore.Record{
		ID:         uuid.New().String(),
		UserID:     user.ID,
		FileName:   fileName,
		Text:       result.Text,
		UploadedAt: h.now().UTC(),
	})
	if errors.Is(err, recordstore.ErrDuplicate) {
		c.JSON(http.StatusConflict, gin.H{"error": msgDuplicateFile})
		return
	}
	if err != nil {
		logger.Error("failed to store extracted text", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgSaveFailed})
		return
	}

	logger.Info("document extracted", "pages", result.PageCount)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"text":    result.Text,
	})
}

// filePart returns the multipart part carrying the upload, streaming the body
// rather than buffering the whole form
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errors.New("no file part")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadField && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// ListDocuments lists the caller's extraction history, newest first
func (h *Handler) ListDocuments(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	records, err := h.store.List(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("list documents failed", "userID", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list documents"})
		return
	}

	documents := make([]gin.H, len(records))
	for i, rec := range records {
		documents[i] = gin.H{
			"id":         rec.ID,
			"fileName":   rec.FileName,
			"uploadedAt": rec.UploadedAt,
			"preview":    document.Preview(rec.Text, document.PreviewLength),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": documents,
		"count":     len(documents),
	})
}

// GetDocument returns the full text of one of the caller's documents
func (h *Handler) GetDocument(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	rec, err := h.store.Get(c.Request.Context(), user.ID, c.Param("id"))
	if errors.Is(err, recordstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
		return
	}
	if err != nil {
		h.logger.Error("get document failed", "userID", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load document"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         rec.ID,
		"fileName":   rec.FileName,
		"uploadedAt": rec.UploadedAt,
		"text":       rec.Text,
	})
}

// DeleteDocument removes one of the caller's documents
func (h *Handler) DeleteDocument(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingID})
		return
	}

	err := h.store.Delete(c.Request.Context(), user.ID, id)
	if errors.Is(err, recordstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
		return
	}
	if err != nil {
		h.logger.Error("delete document failed", "userID", user.ID, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgDeleteFailed})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetSession reports the identity behind the request, if any
func (h *Handler) GetSession(c *gin.Context) {
	user, _, err := h.authenticator.Authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CreateSession stores a valid bearer token in the session cookie
func (h *Handler) CreateSession(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	user, err := h.authenticator.Validate(token)
	if err != nil {
		h.logger.Debug("session sign-in rejected", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	if err := h.authenticator.sessions.StoreToken(c, token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// SignOut clears the session cookie
func (h *Handler) SignOut(c *gin.Context) {
	if err := h.authenticator.sessions.SignOut(c); err != nil {
		h.logger.Error("sign out failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign out"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func currentUser(c *gin.Context) *auth.User {
	v, exists := c.Get(userKey)
	if !exists {
		return nil
	}
	user, _ := v.(*auth.User)
	return user
}
