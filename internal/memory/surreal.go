package memory

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"rehearse/internal/interview"
)

func init() {
	// WebSocket upgrade fails under HTTP/2 ALPN.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

const schemaSQL = `
	DEFINE TABLE IF NOT EXISTS memory SCHEMAFULL;
	DEFINE FIELD IF NOT EXISTS owner ON memory TYPE string;
	DEFINE FIELD IF NOT EXISTS text ON memory TYPE string;
	DEFINE FIELD IF NOT EXISTS type ON memory TYPE string
		ASSERT $value IN ["skill", "experience", "preference", "weakness", "fact", "summary"];
	DEFINE FIELD IF NOT EXISTS embedding ON memory TYPE option<array<float>>;
	DEFINE FIELD IF NOT EXISTS created ON memory TYPE datetime DEFAULT time::now() READONLY;

	DEFINE INDEX IF NOT EXISTS memory_owner ON memory FIELDS owner;
	DEFINE INDEX IF NOT EXISTS memory_embedding ON memory FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`

type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
	Dimension int
}

// SurrealStore keeps memories in SurrealDB with an HNSW index on the
// embedding field.
type SurrealStore struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	cfg    SurrealConfig
	logger logger.Logger
}

var _ VectorStore = (*SurrealStore)(nil)

type memoryRow struct {
	ID        surrealmodels.RecordID `json:"id"`
	Owner     string                 `json:"owner"`
	Text      string                 `json:"text"`
	Type      string                 `json:"type"`
	Embedding []float32              `json:"embedding,omitempty"`
	Created   time.Time              `json:"created,omitempty"`
}

func (r memoryRow) toMemory() Memory {
	id, _ := r.ID.ID.(string)
	return Memory{
		ID:        id,
		OwnerID:   r.Owner,
		Text:      r.Text,
		Category:  interview.Category(r.Type),
		Embedding: r.Embedding,
		CreatedAt: r.Created,
	}
}

// NewSurrealStore connects with an auto-reconnecting WebSocket, signs in and
// selects the namespace/database.
func NewSurrealStore(ctx context.Context, cfg SurrealConfig, log *slog.Logger) (*SurrealStore, error) {
	if log == nil {
		log = slog.Default()
	}
	sdkLogger := logger.New(log.Handler())
	codec := surrealcbor.New()

	// gorillaws appends /rpc itself
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	sdkLogger.Info("connecting to SurrealDB", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	auth := surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}
	if cfg.AuthLevel == "database" {
		auth.Namespace = cfg.Namespace
		auth.Database = cfg.Database
	}
	if _, err := db.SignIn(ctx, auth); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	sdkLogger.Info("SurrealDB connection established")
	return &SurrealStore{conn: conn, db: db, cfg: cfg, logger: sdkLogger}, nil
}

func (s *SurrealStore) Close(ctx context.Context) error {
	s.logger.Info("closing SurrealDB connection")
	return s.conn.Close(ctx)
}

// InitSchema defines the memory table and its indexes.
func (s *SurrealStore) InitSchema(ctx context.Context) error {
	dim := s.cfg.Dimension
	if dim <= 0 {
		dim = 1536
	}
	if _, err := surrealdb.Query[any](ctx, s.db, fmt.Sprintf(schemaSQL, dim), nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SurrealStore) Save(ctx context.Context, m Memory) (Memory, error) {
	data := map[string]any{
		"owner": m.OwnerID,
		"text":  m.Text,
		"type":  string(m.Category),
	}
	if len(m.Embedding) > 0 {
		data["embedding"] = m.Embedding
	}

	results, err := surrealdb.Query[[]memoryRow](ctx, s.db,
		`CREATE type::record("memory", $id) CONTENT $data RETURN AFTER`,
		map[string]any{"id": m.ID, "data": data})
	if err != nil {
		return Memory{}, fmt.Errorf("create memory: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return Memory{}, fmt.Errorf("create memory: no result returned")
	}

	return (*results)[0].Result[0].toMemory(), nil
}

func (s *SurrealStore) Recent(ctx context.Context, owner string, limit int) ([]Memory, error) {
	results, err := surrealdb.Query[[]memoryRow](ctx, s.db, `
		SELECT id, owner, text, type, created FROM memory
		WHERE owner = $owner
		ORDER BY created DESC
		LIMIT $limit
	`, map[string]any{"owner": owner, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent memories: %w", err)
	}
	return rowsToMemories(results), nil
}

// Nearest returns the k memories of owner closest to vector by cosine
// distance.
func (s *SurrealStore) Nearest(ctx context.Context, owner string, vector []float32, k int) ([]Memory, error) {
	sql := fmt.Sprintf(`
		SELECT id, owner, text, type, created, vector::distance::knn() AS distance
		FROM memory
		WHERE owner = $owner AND embedding <|%d,40|> $emb
		ORDER BY distance
	`, k)

	results, err := surrealdb.Query[[]memoryRow](ctx, s.db, sql, map[string]any{
		"owner": owner,
		"emb":   vector,
	})
	if err != nil {
		return nil, fmt.Errorf("nearest memories: %w", err)
	}
	return rowsToMemories(results), nil
}

func rowsToMemories(results *[]surrealdb.QueryResult[[]memoryRow]) []Memory {
	if results == nil || len(*results) == 0 {
		return []Memory{}
	}
	rows := (*results)[0].Result
	out := make([]Memory, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMemory())
	}
	return out
}
