package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/logger"
	"alfredoptarigan/assessment-recommender/internal/models"
)

const unknownDuration int64 = -1

type qdrantIndex struct {
	client         *qdrant.Client
	collectionName string
	vectorSize     uint64
	log            *zap.Logger
}

// NewQdrantIndex connects over gRPC and makes sure the collection exists.
func NewQdrantIndex(ctx context.Context, urlStr, apiKey, collectionName string, vectorSize int, log *zap.Logger) (CatalogIndex, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// gRPC port
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create qdrant client: %w", ErrIndexUnavailable, err)
	}

	q := &qdrantIndex{
		client:         client,
		collectionName: collectionName,
		vectorSize:     uint64(vectorSize),
		log:            logger.OrNop(log).With(zap.String("collection", collectionName)),
	}

	if err := q.initCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return q, nil
}

func (q *qdrantIndex) initCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("%w: failed to check collection: %w", ErrIndexUnavailable, err)
	}

	if exists {
		q.log.Debug("qdrant collection already exists")
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create collection: %w", ErrIndexUnavailable, err)
	}

	q.log.Info("qdrant collection created", zap.Uint64("vector_size", q.vectorSize))
	return nil
}

// Name implements CatalogIndex.
func (q *qdrantIndex) Name() string { return q.collectionName }

// Close releases the gRPC connection.
func (q *qdrantIndex) Close() error {
	return q.client.Close()
}

// Upsert implements CatalogIndex. Point ids are the item ids, so re-indexing overwrites.
func (q *qdrantIndex) Upsert(ctx context.Context, items []models.IndexedItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	points := make([]*qdrant.PointStruct, 0, len(items))
	for _, it := range items {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(it.Item.ID),
			Vectors: qdrant.NewVectors(it.Vector...),
			Payload: qdrant.NewValueMap(itemPayload(&it.Item)),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to upsert points: %w", ErrIndexUnavailable, err)
	}

	return len(points), nil
}

// Query implements CatalogIndex.
func (q *qdrantIndex) Query(ctx context.Context, vector []float32, k int, filter *IndexFilter) ([]IndexHit, error) {
	if k <= 0 {
		return []IndexHit{}, nil
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         qdrantFilter(filter),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to search: %w", ErrIndexUnavailable, err)
	}

	hits := make([]IndexHit, 0, len(points))
	for _, point := range points {
		hits = append(hits, IndexHit{
			Item:     payloadItem(point.GetPayload()),
			Distance: DistanceFromCosine(float64(point.GetScore())),
		})
	}

	return hits, nil
}

// Count implements CatalogIndex.
func (q *qdrantIndex) Count(ctx context.Context) (int, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collectionName,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count points: %w", ErrIndexUnavailable, err)
	}

	return int(n), nil
}

// Clear implements CatalogIndex by dropping and recreating the collection.
func (q *qdrantIndex) Clear(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collectionName); err != nil {
		return fmt.Errorf("%w: failed to delete collection: %w", ErrIndexUnavailable, err)
	}

	q.log.Info("qdrant collection deleted")
	return q.initCollection(ctx)
}

func qdrantFilter(filter *IndexFilter) *qdrant.Filter {
	if filter == nil {
		return nil
	}

	var must []*qdrant.Condition
	if len(filter.TestTypes) > 0 {
		must = append(must, qdrant.NewMatchKeywords("test_type", filter.TestTypes...))
	}
	if filter.RemoteOnly {
		must = append(must, qdrant.NewMatchBool("remote_support", true))
	}
	if len(must) == 0 {
		return nil
	}

	return &qdrant.Filter{Must: must}
}

func itemPayload(item *models.CatalogItem) map[string]any {
	duration := unknownDuration
	if item.DurationMinutes != nil {
		duration = int64(*item.DurationMinutes)
	}

	testTypes := make([]any, 0, len(item.TestTypes))
	for _, t := range item.TestTypes {
		testTypes = append(testTypes, t)
	}

	return map[string]any{
		"id":               item.ID,
		"url":              item.URL,
		"name":             item.Name,
		"description":      item.Description,
		"duration":         duration,
		"test_type":        testTypes,
		"remote_support":   item.RemoteSupport,
		"adaptive_support": item.AdaptiveSupport,
		"job_levels":       item.JobLevels,
		"languages":        item.Languages,
	}
}

func payloadItem(payload map[string]*qdrant.Value) models.CatalogItem {
	item := models.CatalogItem{
		ID:              payload["id"].GetStringValue(),
		URL:             payload["url"].GetStringValue(),
		Name:            payload["name"].GetStringValue(),
		Description:     payload["description"].GetStringValue(),
		RemoteSupport:   payload["remote_support"].GetBoolValue(),
		AdaptiveSupport: payload["adaptive_support"].GetBoolValue(),
		JobLevels:       payload["job_levels"].GetStringValue(),
		Languages:       payload["languages"].GetStringValue(),
	}

	if v, ok := payload["duration"]; ok {
		if d := v.GetIntegerValue(); d >= 0 {
			minutes := int(d)
			item.DurationMinutes = &minutes
		}
	}

	for _, v := range payload["test_type"].GetListValue().GetValues() {
		if s := v.GetStringValue(); s != "" {
			item.TestTypes = append(item.TestTypes, s)
		}
	}

	return item
}
