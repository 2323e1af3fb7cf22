package httpapi

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"

	"campus-rag/internal/domain"
	"campus-rag/internal/usecase"
)

// previewRunes bounds the context text echoed back to chat clients; the
// full text still feeds the generation prompt.
const previewRunes = 200

type Handler struct {
	answer  usecase.AnswerQuestionUsecase
	uploads domain.BlobStore
	logger  *slog.Logger
}

func NewHandler(answer usecase.AnswerQuestionUsecase, uploads domain.BlobStore, logger *slog.Logger) *Handler {
	return &Handler{
		answer:  answer,
		uploads: uploads,
		logger:  logger,
	}
}

// Register attaches all routes to the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/", h.Health)
	e.POST("/chat", h.Chat)
	e.POST("/upload", h.Upload)
}

// Health reports liveness.
// (GET /)
func (h *Handler) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "campus-rag backend is running",
	})
}

type chatRequest struct {
	GroupID string `json:"group_id"`
	Query   string `json:"query"`
}

type chatContext struct {
	ChunkID string  `json:"chunk_id"`
	Score   float32 `json:"score"`
	Text    string  `json:"text"`
}

type chatResponse struct {
	Answer   string        `json:"answer"`
	Contexts []chatContext `json:"contexts"`
}

// Chat answers a question grounded in the group's uploaded files.
// (POST /chat)
func (h *Handler) Chat(ctx echo.Context) error {
	var req chatRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.GroupID == "" || req.Query == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "group_id and query are required"})
	}

	result := h.answer.Execute(ctx.Request().Context(), usecase.AnswerQuestionInput{
		GroupID: req.GroupID,
		Query:   req.Query,
	})

	contexts := make([]chatContext, 0, len(result.Contexts))
	for _, c := range result.Contexts {
		contexts = append(contexts, chatContext{
			ChunkID: c.ChunkID,
			Score:   c.Score,
			Text:    preview(c.Text),
		})
	}

	return ctx.JSON(http.StatusOK, chatResponse{
		Answer:   result.Text,
		Contexts: contexts,
	})
}

type uploadResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

// Upload stores one file for a group. Ingestion (chunking and indexing)
// happens downstream of the blob write.
// (POST /upload)
func (h *Handler) Upload(ctx echo.Context) error {
	groupID := ctx.FormValue("group_id")
	if groupID == "" {
		return ctx.JSON(http.StatusBadRequest, uploadResponse{
			Status:  "error",
			Message: "group_id is required",
		})
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, uploadResponse{
			Status:  "error",
			Message: "file is required",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, uploadResponse{
			Status:  "error",
			Message: "failed to open uploaded file",
		})
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(src)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, uploadResponse{
			Status:  "error",
			Message: "failed to read uploaded file",
		})
	}

	// path.Base strips any client-supplied directory components.
	filename := path.Base(fileHeader.Filename)
	blobPath := fmt.Sprintf("groups/%s/%s", groupID, filename)
	contentType := fileHeader.Header.Get("Content-Type")

	if err := h.uploads.Upload(ctx.Request().Context(), blobPath, data, contentType); err != nil {
		h.logger.Error("upload_failed",
			slog.String("group_id", groupID),
			slog.String("path", blobPath),
			slog.String("error", err.Error()),
		)
		return ctx.JSON(http.StatusInternalServerError, uploadResponse{
			Status:  "error",
			Message: "failed to store file",
		})
	}

	h.logger.Info("file_uploaded",
		slog.String("group_id", groupID),
		slog.String("path", blobPath),
		slog.Int("bytes", len(data)),
	)
	return ctx.JSON(http.StatusOK, uploadResponse{
		Status:  "success",
		Message: fmt.Sprintf("File '%s' uploaded successfully", filename),
		Path:    blobPath,
		GroupID: groupID,
	})
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}
