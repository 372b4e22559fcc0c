package server

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"studyrag/internal/config"
	"studyrag/internal/rag"
)

// Service is the document pipeline behind the HTTP routes
type Service interface {
	Ingest(ctx context.Context, filename string, body io.Reader) (*rag.IngestResult, error)
	Run(ctx context.Context, task string, req rag.Request) (*rag.Result, error)
	DeleteSession(ctx context.Context, id string) error
}

func NewRouter(svc Service, cfg config.ServerConfig) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())
	router.Use(rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	h := NewHandler(svc, cfg.MaxUploadBytes())

	router.GET("/healthz", h.Health)
	router.POST("/summarize_pdf/", h.SummarizePDF)
	router.POST("/explain_concept/", h.ExplainConcept)
	router.POST("/generate_quiz/", h.GenerateQuiz)
	router.POST("/generate_case_study/", h.GenerateCaseStudy)
	router.POST("/generate_visualization/", h.GenerateVisualization)
	router.DELETE("/sessions/:id", h.DeleteSession)

	return router
}
