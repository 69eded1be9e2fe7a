package vectorstore

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantStore is the primary Vector Store backend, adapted from the
// teacher's engine/semantic package to chunk/embedding payloads instead
// of forum-post payloads.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// NewQdrantStore dials Qdrant at addr and targets the given collection.
func NewQdrantStore(addr, collection string) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: dial qdrant %s: %w", addr, err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close releases the underlying gRPC connection.
func (q *QdrantStore) Close() error { return q.conn.Close() }

// EnsureCollection creates the collection with the given vector
// dimensionality if it does not already exist.
func (q *QdrantStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("vectorstore: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %s: %w", q.collection, err)
	}
	return nil
}

var _ Store = (*QdrantStore)(nil)

// Add upserts chunk embeddings into the collection.
func (q *QdrantStore) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: r.ChunkID}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Vector}},
			},
			Payload: map[string]*pb.Value{
				"document_id": {Kind: &pb.Value_StringValue{StringValue: r.DocumentID}},
				"content":     {Kind: &pb.Value_StringValue{StringValue: r.Content}},
			},
		}
	}
	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert %d points: %w", len(records), err)
	}
	return nil
}

// Search performs k-NN similarity search, over-fetching by overFetchFactor
// when a document filter is supplied so post-filtering doesn't starve the
// result set.
func (q *QdrantStore) Search(ctx context.Context, query []float32, topK int, documentID string) ([]SearchResult, error) {
	limit := uint64(topK)
	if documentID != "" {
		limit = uint64(topK * overFetchFactor)
	}

	req := &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         query,
		Limit:          limit,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}

	out := make([]SearchResult, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		docID := r.GetPayload()["document_id"].GetStringValue()
		if documentID != "" && docID != documentID {
			continue
		}
		out = append(out, SearchResult{
			ChunkID:    r.GetId().GetUuid(),
			DocumentID: docID,
			Similarity: l2ScoreToSimilarity(r.GetScore()),
		})
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

// l2ScoreToSimilarity converts a Qdrant Euclidean distance score into the
// monotonic, bounded 1/(1+d) similarity the contract promises.
func l2ScoreToSimilarity(distance float32) float64 {
	return 1.0 / (1.0 + float64(distance))
}

// Stats reports collection-wide counts. Document count is not tracked by
// Qdrant itself, so it is left at zero here — callers needing it should
// consult Persistence, the system of record for document identity.
func (q *QdrantStore) Stats(ctx context.Context) (Stats, error) {
	info, err := q.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: q.collection})
	if err != nil {
		return Stats{}, fmt.Errorf("vectorstore: collection info: %w", err)
	}
	return Stats{TotalChunks: int(info.GetResult().GetPointsCount())}, nil
}
