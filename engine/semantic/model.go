package semantic

import (
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/WessleyAI/article-indexer/engine/domain"
)

// Point is one vector to store in Qdrant.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]any
}

// PointsFromDocuments assigns each document the sequential id of its
// position. The payload is the document's metadata plus its text.
func PointsFromDocuments(docs []domain.Document) []Point {
	points := make([]Point, len(docs))
	for i, d := range docs {
		points[i] = Point{ID: uint64(i), Vector: d.Embedding, Payload: d.Payload()}
	}
	return points
}

func (p Point) proto() *pb.PointStruct {
	payload := make(map[string]*pb.Value, len(p.Payload))
	for k, val := range p.Payload {
		payload[k] = toValue(val)
	}
	return &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Num{Num: p.ID},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: p.Vector},
			},
		},
		Payload: payload,
	}
}

func toValue(val any) *pb.Value {
	switch tv := val.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
	case []string:
		values := make([]*pb.Value, len(tv))
		for i, s := range tv {
			values[i] = toValue(s)
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: values}}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
	case nil:
		return &pb.Value{Kind: &pb.Value_NullValue{}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
	}
}
