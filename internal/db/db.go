package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"studyrag/internal/config"
	"studyrag/internal/models"
)

// ChunkRow is one embedded chunk stored in Postgres
type ChunkRow struct {
	bun.BaseModel `bun:"table:rag_chunks,alias:c"`
	ID            int64           `bun:"id,pk,autoincrement"`
	SessionID     string          `bun:"session_id,notnull"`
	Seq           int             `bun:"seq,notnull"`
	Page          int             `bun:"page,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Similarity    float32         `bun:"similarity,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with the configured driver
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "pq":
		return sql.Open("postgres", cfg.DSN)
	case "pgdriver", "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*ChunkRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*ChunkRow)(nil)).
		Index("rag_chunks_session_id_idx").
		IfNotExists().
		Column("session_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Provider keeps every session's chunks in one table, partitioned by session id
type Provider struct {
	db *bun.DB

	initOnce sync.Once
	initErr  error
}

func NewProvider(db *bun.DB) *Provider {
	return &Provider{db: db}
}

func (p *Provider) init(ctx context.Context) error {
	p.initOnce.Do(func() {
		p.initErr = InitDB(ctx, p.db)
	})
	return p.initErr
}

func (p *Provider) Create(ctx context.Context, sess *models.Session) (models.VectorIndex, error) {
	if err := p.init(ctx); err != nil {
		return nil, err
	}
	// ids are never reused but a crashed ingest may have left rows behind
	if err := p.Drop(ctx, sess); err != nil {
		return nil, err
	}
	return &Index{db: p.db, sessionID: sess.ID}, nil
}

func (p *Provider) Open(ctx context.Context, sess *models.Session) (models.VectorIndex, error) {
	if err := p.init(ctx); err != nil {
		return nil, err
	}
	return &Index{db: p.db, sessionID: sess.ID}, nil
}

func (p *Provider) Drop(ctx context.Context, sess *models.Session) error {
	if err := p.init(ctx); err != nil {
		return err
	}
	res, err := p.db.NewDelete().
		Model((*ChunkRow)(nil)).
		Where("session_id = ?", sess.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", sess.ID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Debug().Str("session_id", sess.ID).Int64("rows", n).Msg("Dropped chunks")
	}
	return nil
}

// Index is the view of rag_chunks belonging to one session
type Index struct {
	db        *bun.DB
	sessionID string
}

func (i *Index) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]ChunkRow, len(chunks))
	for n, chunk := range chunks {
		rows[n] = ChunkRow{
			SessionID: i.sessionID,
			Seq:       chunk.Seq,
			Page:      chunk.SourcePage,
			Content:   sanitizeUTF8(chunk.Text),
			Embedding: pgvector.NewVector(vectors[n]),
		}
	}

	return i.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
		return nil
	})
}

// Search orders by cosine distance; similarity is reported as 1 - distance
func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	query := pgvector.NewVector(vector)

	var rows []ChunkRow
	if err := i.searchQuery(&rows, query, k).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.ScoredChunk, len(rows))
	for n, r := range rows {
		out[n] = models.ScoredChunk{
			Chunk:      models.Chunk{Text: r.Content, SourcePage: r.Page, Seq: r.Seq},
			Similarity: r.Similarity,
		}
	}
	return out, nil
}

func (i *Index) searchQuery(rows *[]ChunkRow, query pgvector.Vector, k int) *bun.SelectQuery {
	return i.db.NewSelect().
		Model(rows).
		Column("seq", "page", "content").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", query).
		Where("session_id = ?", i.sessionID).
		OrderExpr("embedding <=> ?", query).
		Limit(k)
}

func (i *Index) Count(ctx context.Context) (int, error) {
	return i.db.NewSelect().
		Model((*ChunkRow)(nil)).
		Where("session_id = ?", i.sessionID).
		Count(ctx)
}

// sanitizeUTF8 drops invalid bytes and NULs, which Postgres text columns reject
func sanitizeUTF8(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
