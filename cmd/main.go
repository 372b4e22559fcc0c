package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"studyrag/internal/chromemdb"
	"studyrag/internal/config"
	"studyrag/internal/db"
	"studyrag/internal/embedding"
	"studyrag/internal/helper"
	"studyrag/internal/llmservice"
	"studyrag/internal/models"
	"studyrag/internal/rag"
	"studyrag/internal/server"
	"studyrag/internal/session"
)

const (
	configFilePath  = "./configs/config.yaml"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", configFilePath, "Path to the config file (yaml or toml)")
	filePath := flag.String("file", "", "Path to a document to ingest")
	sessionID := flag.String("session", "", "Session id to run a task against")
	concept := flag.String("explain", "", "Concept to explain")
	quiz := flag.String("quiz", "", "Quiz request, e.g. \"5 questions\"")
	caseStudy := flag.String("case-study", "", "Extra case study instructions")
	visualize := flag.String("visualize", "", "Extra visualization instructions")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error loading .env: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Int("errors", len(errs)).Msg("Invalid configuration")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	// flags given explicitly, so an empty prompt still selects its task
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing")
	}
	defer app.close()

	switch {
	case *filePath != "" && *sessionID != "":
		log.Fatal().Msg("Please provide either a document using the -file flag or a session using the -session flag, but not both")
	case *filePath != "":
		ingestFile(ctx, app.rag, *filePath)
	case *sessionID != "":
		var task string
		req := rag.Request{SessionID: *sessionID}
		switch {
		case set["explain"]:
			task, req.Concept = rag.TaskExplain, *concept
		case set["quiz"]:
			task, req.Prompt = rag.TaskQuiz, *quiz
		case set["case-study"]:
			task, req.Prompt = rag.TaskCaseStudy, *caseStudy
		case set["visualize"]:
			task, req.Prompt = rag.TaskVisualization, *visualize
		default:
			log.Fatal().Msg("Please choose a task with -explain, -quiz, -case-study or -visualize")
		}
		runTask(ctx, app.rag, task, req)
	default:
		serve(ctx, cfg, app)
	}
}

func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()
	}
}

type app struct {
	rag     *rag.RAG
	sweeper session.Sweeper
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Error closing resource")
		}
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	files, err := session.NewFileStore(cfg.Session.Root, cfg.SessionTTL())
	if err != nil {
		return nil, err
	}
	var store rag.SessionStore = files
	a.sweeper = files

	if cfg.Session.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("error connecting to redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		redisStore := session.NewRedisStore(client, files, cfg.SessionTTL())
		store, a.sweeper = redisStore, redisStore
	}

	var indexes models.IndexProvider
	switch cfg.VectorStore.Type {
	case "pgvector":
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		dbInstance := db.NewDB(sqldb, cfg.Database.Debug)
		a.closers = append(a.closers, dbInstance.Close)
		if err := db.InitDB(ctx, dbInstance); err != nil {
			a.close()
			return nil, fmt.Errorf("error initializing database: %w", err)
		}
		indexes = db.NewProvider(dbInstance)
	default:
		indexes = chromemdb.NewProvider(cfg.VectorStore.Compress)
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM, cfg.RAG.EmbedBatchSize)
	if err != nil {
		a.close()
		return nil, err
	}
	generator, err := llmservice.NewClient(&cfg.InferenceLLM)
	if err != nil {
		a.close()
		return nil, err
	}

	a.rag, err = rag.NewRAG(cfg.RAG, store, indexes, embedder, generator)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func serve(ctx context.Context, cfg *config.Config, a *app) {
	janitor := session.NewJanitor(a.sweeper, cfg.SweepInterval(), func(ids []string) {
		purgeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		a.rag.Purge(purgeCtx, ids...)
	})
	go janitor.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: server.NewRouter(a.rag, cfg.Server),
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// withSpinner keeps a spinner running while fn blocks
func withSpinner(description string, fn func()) {
	spinner := getSpinner(description)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				spinner.Add(1)
			}
		}
	}()
	fn()
	close(done)
	spinner.Finish()
	fmt.Println()
}

func ingestFile(ctx context.Context, r *rag.RAG, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening document")
	}
	defer f.Close()

	var res *rag.IngestResult
	withSpinner("Indexing "+filepath.Base(path), func() {
		res, err = r.Ingest(ctx, filepath.Base(path), f)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting document")
	}

	log.Info().Msg("Summary: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", res.Summary)

	color.Green("Session: %s (%d chunks)", res.SessionID, res.ChunkCount)
}

func runTask(ctx context.Context, r *rag.RAG, task string, req rag.Request) {
	var res *rag.Result
	var err error
	withSpinner("Running "+task, func() {
		res, err = r.Run(ctx, task, req)
	})
	if err != nil {
		log.Fatal().Err(err).Str("task", task).Msg("Error running task")
	}

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, src := range res.Sources {
		fmt.Printf("%s %s\n", color.HiBlackString("[p%d #%d %.3f]", src.SourcePage, src.Seq, src.Similarity), firstLine(src.Text))
	}
	fmt.Println()

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	if res.Partial {
		color.Yellow("Fewer questions came back than requested")
	}
	if res.Visualization != nil {
		helper.PrettyPrint(os.Stdout, res.Visualization)
		return
	}
	fmt.Printf("%s\n\n", res.Text)
}

func firstLine(s string) string {
	const width = 80
	runes := []rune(s)
	for i, r := range runes {
		if r == '\n' || i == width {
			return string(runes[:i]) + "…"
		}
	}
	return s
}
