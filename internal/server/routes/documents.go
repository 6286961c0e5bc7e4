package routes

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aletheia-codex/backend/internal/queue"
	"github.com/aletheia-codex/backend/internal/server/response"
	"github.com/aletheia-codex/backend/internal/storage"
	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/loader"
	"github.com/aletheia-codex/backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const maxTitleLength = 200

// CreateDocumentHandler stores a text or web document and schedules its
// extraction.
func CreateDocumentHandler(c echo.Context) error {
	type createDocumentBody struct {
		Title     string `json:"title" validate:"max=200"`
		Text      string `json:"text"`
		SourceURL string `json:"source_url" validate:"omitempty,url"`
	}

	data := new(createDocumentBody)
	if err := c.Bind(data); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid request body")
	}
	if (data.Text == "") == (data.SourceURL == "") {
		return response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "Exactly one of text or source_url is required")
	}

	src := loader.Source{Type: loader.SourceTypeText, Body: []byte(data.Text)}
	if data.SourceURL != "" {
		src = loader.Source{Type: loader.SourceTypeWeb, URL: data.SourceURL}
	}
	return submitDocument(c, data.Title, data.SourceURL, src)
}

// UploadDocumentHandler accepts a multipart file upload (plain text or
// .docx) and schedules its extraction.
func UploadDocumentHandler(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "Missing file")
	}
	if fh.Size > loader.MaxTextBytes*4 {
		return response.Fail(c, http.StatusBadRequest, response.CodeInvalidParameter, "File too large")
	}
	f, err := fh.Open()
	if err != nil {
		return response.FromError(c, err, "Failed to read upload")
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		return response.FromError(c, err, "Failed to read upload")
	}

	title := c.FormValue("title")
	if title == "" {
		title = fh.Filename
	}
	src := loader.Source{
		Type: loader.DetectType(fh.Filename, fh.Header.Get("Content-Type")),
		Name: fh.Filename,
		Body: body,
	}
	return submitDocument(c, title, "", src)
}

func submitDocument(c echo.Context, title, sourceURL string, src loader.Source) error {
	app, user := appContext(c)
	ctx := c.Request().Context()

	text, err := app.Loaders.Load(ctx, src)
	if err != nil {
		return response.FromError(c, err, "Failed to load document")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = firstLine(text)
	}

	now := time.Now().UTC()
	doc := &common.Document{
		ID:        uuid.NewString(),
		UserID:    user.UserID,
		Title:     title,
		SourceURL: sourceURL,
		Status:    common.DocumentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.ContentKey = storage.DocumentKey(user.UserID, doc.ID)

	if err := app.Storage.PutDocument(ctx, doc.ContentKey, []byte(text)); err != nil {
		return response.FromError(c, err, "Failed to store document")
	}
	if err := app.Documents.CreateDocument(ctx, doc); err != nil {
		return response.FromError(c, err, "Failed to create document")
	}

	err = queue.PublishExtract(ctx, app.Publisher, queue.ExtractMsg{
		DocumentID:    doc.ID,
		UserID:        user.UserID,
		CorrelationID: doc.ID,
	})
	if err != nil {
		logger.Error("[Server] Failed to schedule extraction", "document_id", doc.ID, "err", err)
		return response.FromError(c, err, "Failed to schedule document processing")
	}

	logger.Info("[Server] Document submitted", "document_id", doc.ID, "user_id", user.UserID, "source", src.Type)
	return c.JSON(http.StatusAccepted, response.Envelope{Success: true, Data: doc})
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > maxTitleLength {
		line = string(r[:maxTitleLength])
	}
	return line
}

// GetDocumentHandler returns one of the caller's documents with its status
// and extraction summary.
func GetDocumentHandler(c echo.Context) error {
	doc, err := ownedDocument(c)
	if err != nil {
		return response.FromError(c, err, "Failed to get document")
	}
	return response.OK(c, doc)
}

// GetDocumentItemsHandler lists the review items extracted from a document.
func GetDocumentItemsHandler(c echo.Context) error {
	type documentItemsResponse struct {
		DocumentID string               `json:"document_id"`
		Items      []*common.ReviewItem `json:"items"`
		Count      int                  `json:"count"`
	}

	doc, err := ownedDocument(c)
	if err != nil {
		return response.FromError(c, err, "Failed to get document items")
	}
	app, user := appContext(c)
	items, err := app.Queue.ListByDocument(c.Request().Context(), user.UserID, doc.ID)
	if err != nil {
		return response.FromError(c, err, "Failed to get document items")
	}
	if items == nil {
		items = []*common.ReviewItem{}
	}
	return response.OK(c, documentItemsResponse{DocumentID: doc.ID, Items: items, Count: len(items)})
}

func ownedDocument(c echo.Context) (*common.Document, error) {
	app, user := appContext(c)
	id := c.Param("id")
	doc, err := app.Documents.GetDocument(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, common.NotFoundf("document %s", id)
	}
	if doc.UserID != user.UserID {
		return nil, common.Forbiddenf("document %s belongs to another user", id)
	}
	return doc, nil
}
