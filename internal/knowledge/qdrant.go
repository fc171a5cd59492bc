// Package knowledge wraps the vector store behind the narrow surface the
// reply path needs: similarity search plus the upsert/delete hooks the
// ingestion side calls.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/vinchat/vinchat/internal/config"
)

// Chunk is one ranked knowledge fragment.
type Chunk struct {
	Text     string
	Link     string
	Distance float32
}

// UpsertChunk is one fragment to index, with its precomputed vector.
type UpsertChunk struct {
	ID          uint64
	KnowledgeID int64
	Text        string
	Link        string
	Vector      []float32
}

// Searcher is the read side consumed by the reply orchestrator.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int) ([]Chunk, error)
}

// QdrantStore implements the knowledge surface on a Qdrant collection.
type QdrantStore struct {
	logger     *slog.Logger
	client     *qdrant.Client
	collection string
	timeout    time.Duration
}

func NewQdrantStore(log *slog.Logger, cfg config.QdrantConfig) (*QdrantStore, error) {
	if log == nil {
		log = slog.Default()
	}
	host, port, useTLS, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QdrantStore{
		logger:     log.With(slog.String("service", "knowledge")),
		client:     client,
		collection: cfg.Collection,
		timeout:    timeout,
	}, nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Search returns the topK chunks nearest to the query vector.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	limit := uint64(topK)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	chunks := make([]Chunk, 0, len(points))
	for _, point := range points {
		chunk := Chunk{Distance: point.GetScore()}
		if payload := point.GetPayload(); payload != nil {
			chunk.Text = payload["text"].GetStringValue()
			chunk.Link = payload["link"].GetStringValue()
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Upsert indexes the given chunks.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []UpsertChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(chunk.ID),
			Vectors: qdrant.NewVectors(chunk.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"text":         chunk.Text,
				"link":         chunk.Link,
				"knowledge_id": chunk.KnowledgeID,
			}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// DeleteByKnowledgeID removes all chunks of a knowledge document.
func (s *QdrantStore) DeleteByKnowledgeID(ctx context.Context, knowledgeID int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchInt("knowledge_id", knowledgeID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

func parseBaseURL(baseURL string) (host string, port int, useTLS bool, err error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", 0, false, fmt.Errorf("parse qdrant url: %w", err)
	}
	host = parsed.Hostname()
	if host == "" {
		host = "127.0.0.1"
	}
	port = 6334
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("parse qdrant port: %w", err)
		}
	}
	return host, port, parsed.Scheme == "https", nil
}
