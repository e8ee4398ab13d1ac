package docstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadIDField stores the original record id in the Qdrant point
// payload when the id itself isn't already a valid UUID (Qdrant point
// ids must be a UUID or a positive integer). Grounded on the teacher's
// qdrant_vector.go adapter.
const payloadIDField = "_original_id"

type qdrantBackend struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

func newQdrantBackend(addr, apiKey, indexName string, dimension int, metric string) (VectorBackend, error) {
	cfg := &qdrant.Config{Host: addr, Port: 6334}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("dial qdrant: %w", err)
	}
	qb := &qdrantBackend{client: client, collection: indexName, dimension: dimension}
	if err := qb.ensureCollection(context.Background(), metric); err != nil {
		client.Close()
		return nil, err
	}
	return qb, nil
}

func (q *qdrantBackend) ensureCollection(ctx context.Context, metric string) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}
	distance := qdrant.Distance_Cosine
	switch metric {
	case "euclid", "l2":
		distance = qdrant.Distance_Euclid
	case "dot", "ip":
		distance = qdrant.Distance_Dot
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires a positive vector dimension")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	})
}

func pointUUID(id string) (string, bool) {
	if _, err := uuid.Parse(id); err == nil {
		return id, false
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), true
}

func (q *qdrantBackend) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	pid, remapped := pointUUID(id)
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	if remapped {
		payload[payloadIDField] = id
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pid),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	return err
}

func (q *qdrantBackend) Delete(ctx context.Context, id string) error {
	pid, _ := pointUUID(id)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pid)),
	})
	return err
}

func (q *qdrantBackend) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]ScoredRecord, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	var qf *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		qf = &qdrant.Filter{Must: must}
	}
	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]ScoredRecord, 0, len(hits))
	for _, hit := range hits {
		id := hit.Id.GetUuid()
		meta := make(map[string]string)
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				if k == payloadIDField {
					id = v.GetStringValue()
					continue
				}
				meta[k] = v.GetStringValue()
			}
		}
		out = append(out, ScoredRecord{ID: id, Score: float64(hit.Score), Metadata: meta})
	}
	return out, nil
}

func (q *qdrantBackend) Close() error { return q.client.Close() }
