package kafka

import (
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoEventEncoder сериализует доменные события в protobuf Struct.
// Суммы передаются в центах.
type ProtoEventEncoder struct{}

func NewProtoEventEncoder() *ProtoEventEncoder {
	return &ProtoEventEncoder{}
}

func (ProtoEventEncoder) EncodeOrderPlaced(order *domain.Order) ([]byte, error) {
	total, err := order.CheckedTotal()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	items := make([]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
			"price":      item.Price,
			"sub_total":  item.SubTotal(),
		})
	}

	payload, err := structpb.NewStruct(map[string]any{
		"event_type": string(domain.EventOrderPlaced),
		"order_id":   order.ID,
		"client_id":  order.ClientID,
		"status":     string(order.Status),
		"moment":     order.Moment.UTC().Format(time.RFC3339),
		"items":      items,
		"total":      total,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	data, err := proto.Marshal(payload)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return data, nil
}

// DecodeEvent разбирает payload, записанный EncodeOrderPlaced.
func DecodeEvent(data []byte) (map[string]any, error) {
	var payload structpb.Struct
	if err := proto.Unmarshal(data, &payload); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return payload.AsMap(), nil
}
