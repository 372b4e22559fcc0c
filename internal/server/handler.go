package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"studyrag/internal/models"
	"studyrag/internal/parser"
	"studyrag/internal/rag"
)

const sessionNotFoundMessage = "Session not found. Please upload a document first."

// multipart headers on top of the file itself
const formOverhead = 1 << 20

type Handler struct {
	svc       Service
	maxUpload int64
}

type ExplainRequest struct {
	Concept   string `json:"concept" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

type TaskRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Prompt    string `json:"prompt"`
}

func NewHandler(svc Service, maxUpload int64) *Handler {
	return &Handler{svc: svc, maxUpload: maxUpload}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) SummarizePDF(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+formOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		abortWithError(c, http.StatusBadRequest, "missing file")
		return
	}
	if file.Size > h.maxUpload {
		abortWithError(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	if !parser.IsSupported(file.Filename) {
		abortWithError(c, http.StatusBadRequest, "unsupported file type: "+file.Filename)
		return
	}

	f, err := file.Open()
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer f.Close()

	res, err := h.svc.Ingest(c.Request.Context(), file.Filename, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": res.Summary, "session_id": res.SessionID})
}

func (h *Handler) ExplainConcept(c *gin.Context) {
	var req ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid request payload: concept and session_id are required")
		return
	}
	res, err := h.svc.Run(c.Request.Context(), rag.TaskExplain, rag.Request{SessionID: req.SessionID, Concept: req.Concept})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanation": res.Text})
}

func (h *Handler) GenerateQuiz(c *gin.Context) {
	h.runTask(c, rag.TaskQuiz, func(res *rag.Result) gin.H {
		return gin.H{"quiz": res.Text}
	})
}

func (h *Handler) GenerateCaseStudy(c *gin.Context) {
	h.runTask(c, rag.TaskCaseStudy, func(res *rag.Result) gin.H {
		return gin.H{"caseStudy": res.Text}
	})
}

func (h *Handler) GenerateVisualization(c *gin.Context) {
	h.runTask(c, rag.TaskVisualization, func(res *rag.Result) gin.H {
		return gin.H{"visualization": res.Visualization}
	})
}

func (h *Handler) runTask(c *gin.Context, task string, render func(*rag.Result) gin.H) {
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid request payload: session_id is required")
		return
	}
	res, err := h.svc.Run(c.Request.Context(), task, rag.Request{SessionID: req.SessionID, Prompt: req.Prompt})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, render(res))
}

func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteSession(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// statusFor maps pipeline errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmbeddingMismatch):
		return http.StatusConflict
	case errors.Is(err, models.ErrDocumentParse),
		errors.Is(err, models.ErrOutputParse),
		errors.Is(err, models.ErrNoStructuredAnswer):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusNotFound {
		message = sessionNotFoundMessage
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	abortWithError(c, status, message)
}
