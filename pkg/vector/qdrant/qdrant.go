// Package qdrant provides a Qdrant-backed vector index over gRPC.
//
// Qdrant's HNSW search is approximate: recall is high but the exact top-K set
// of the brute-force ranker is not guaranteed.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"

	"github.com/snipstash/snipstash/pkg/vector"
)

// DefaultCollection is the collection snippet embeddings live in.
const DefaultCollection = "snipstash_snippets"

// Index implements vector.Index using Qdrant. Snippet IDs are used as numeric
// point IDs.
type Index struct {
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant index.
type Config struct {
	// Addr is the Qdrant gRPC address, e.g. "localhost:6334". Required.
	Addr string

	// Collection defaults to DefaultCollection if empty.
	Collection string

	// Dimensions is the number of dimensions for the embedding vectors.
	// Required.
	Dimensions uint
}

// NewIndex connects to Qdrant and ensures the snippet collection exists with
// cosine distance.
func NewIndex(ctx context.Context, c Config, logger *zap.Logger) (*Index, error) {
	if c.Addr == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	conn, err := grpc.NewClient(c.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrConnection, err)
	}

	x := &Index{
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: collection,
		dimensions: c.Dimensions,
		logger:     logger,
	}

	if err := x.ensureCollection(ctx, pb.NewCollectionsClient(conn)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ensuring collection: %v", vector.ErrConnection, err)
	}

	logger.Info("qdrant index initialized",
		zap.String("addr", c.Addr),
		zap.String("collection", collection),
		zap.Uint("dimensions", c.Dimensions),
	)

	return x, nil
}

func (x *Index) ensureCollection(ctx context.Context, collections pb.CollectionsClient) error {
	_, err := collections.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: x.collection,
	})
	if err == nil {
		return nil
	}

	_, err = collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     uint64(x.dimensions),
			Distance: pb.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", x.collection, err)
	}

	return nil
}

// Add upserts entries as points keyed by snippet ID.
func (x *Index) Add(ctx context.Context, entries []vector.Candidate) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, 0, len(entries))
	for _, e := range entries {
		if uint(len(e.Embedding)) != x.dimensions {
			return fmt.Errorf("%w: entry %d has %d dimensions, index expects %d",
				vector.ErrDimensionMismatch, e.ID, len(e.Embedding), x.dimensions)
		}

		points = append(points, &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(e.ID)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Embedding}}},
		})
	}

	_, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Points:         points,
		Wait:           proto.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("%w: upserting points: %v", vector.ErrConnection, err)
	}

	x.logger.Debug("added entries to qdrant index",
		zap.Int("count", len(points)),
	)

	return nil
}

// Delete removes points by snippet ID. Unknown IDs are ignored by Qdrant.
func (x *Index) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(id)}}
	}

	_, err := x.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: x.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
		Wait: proto.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting points: %v", vector.ErrConnection, err)
	}

	return nil
}

// Query returns the top k points by cosine similarity.
func (x *Index) Query(ctx context.Context, query []float32, k int) ([]vector.Match, error) {
	if k <= 0 {
		return []vector.Match{}, nil
	}

	if uint(len(query)) != x.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			vector.ErrDimensionMismatch, len(query), x.dimensions)
	}

	resp, err := x.points.Search(ctx, &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         query,
		Limit:          uint64(k),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: searching points: %v", vector.ErrConnection, err)
	}

	matches := make([]vector.Match, 0, len(resp.GetResult()))
	for _, hit := range resp.GetResult() {
		id, ok := hit.GetId().GetPointIdOptions().(*pb.PointId_Num)
		if !ok {
			continue
		}
		matches = append(matches, vector.Match{
			ID:    int64(id.Num),
			Score: hit.GetScore(),
		})
	}

	x.logger.Debug("queried qdrant index",
		zap.Int("results", len(matches)),
	)

	return matches, nil
}

// Close closes the underlying gRPC connection.
func (x *Index) Close() error {
	return x.conn.Close()
}

var _ vector.Index = (*Index)(nil)
