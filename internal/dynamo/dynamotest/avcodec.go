package dynamotest

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Items are persisted in badger as JSON in the DynamoDB wire shape:
// {"name": {"S": "..."}, "count": {"N": "3"}, ...}. Only the attribute
// types this service writes are supported.

type wireValue struct {
	S    *string              `json:"S,omitempty"`
	N    *string              `json:"N,omitempty"`
	Bool *bool                `json:"BOOL,omitempty"`
	Null *bool                `json:"NULL,omitempty"`
	L    []wireValue          `json:"L,omitempty"`
	M    map[string]wireValue `json:"M,omitempty"`
	SS   []string             `json:"SS,omitempty"`
}

func encodeItem(item map[string]types.AttributeValue) ([]byte, error) {
	wire := make(map[string]wireValue, len(item))
	for name, av := range item {
		wv, err := encodeValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		wire[name] = wv
	}
	return json.Marshal(wire)
}

func decodeItem(data []byte) (map[string]types.AttributeValue, error) {
	var wire map[string]wireValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	item := make(map[string]types.AttributeValue, len(wire))
	for name, wv := range wire {
		av, err := decodeValue(wv)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		item[name] = av
	}
	return item, nil
}

func encodeValue(av types.AttributeValue) (wireValue, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return wireValue{S: &v.Value}, nil
	case *types.AttributeValueMemberN:
		return wireValue{N: &v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return wireValue{Bool: &v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return wireValue{Null: &v.Value}, nil
	case *types.AttributeValueMemberSS:
		return wireValue{SS: v.Value}, nil
	case *types.AttributeValueMemberL:
		out := make([]wireValue, 0, len(v.Value))
		for _, el := range v.Value {
			wv, err := encodeValue(el)
			if err != nil {
				return wireValue{}, err
			}
			out = append(out, wv)
		}
		if out == nil {
			out = []wireValue{}
		}
		return wireValue{L: out}, nil
	case *types.AttributeValueMemberM:
		out := make(map[string]wireValue, len(v.Value))
		for k, el := range v.Value {
			wv, err := encodeValue(el)
			if err != nil {
				return wireValue{}, err
			}
			out[k] = wv
		}
		return wireValue{M: out}, nil
	default:
		return wireValue{}, fmt.Errorf("unsupported attribute value type %T", av)
	}
}

func decodeValue(wv wireValue) (types.AttributeValue, error) {
	switch {
	case wv.S != nil:
		return &types.AttributeValueMemberS{Value: *wv.S}, nil
	case wv.N != nil:
		return &types.AttributeValueMemberN{Value: *wv.N}, nil
	case wv.Bool != nil:
		return &types.AttributeValueMemberBOOL{Value: *wv.Bool}, nil
	case wv.Null != nil:
		return &types.AttributeValueMemberNULL{Value: *wv.Null}, nil
	case wv.SS != nil:
		return &types.AttributeValueMemberSS{Value: wv.SS}, nil
	case wv.L != nil:
		out := make([]types.AttributeValue, 0, len(wv.L))
		for _, el := range wv.L {
			av, err := decodeValue(el)
			if err != nil {
				return nil, err
			}
			out = append(out, av)
		}
		return &types.AttributeValueMemberL{Value: out}, nil
	case wv.M != nil:
		out := make(map[string]types.AttributeValue, len(wv.M))
		for k, el := range wv.M {
			av, err := decodeValue(el)
			if err != nil {
				return nil, err
			}
			out[k] = av
		}
		return &types.AttributeValueMemberM{Value: out}, nil
	default:
		// The expression builder can emit empty lists/maps; an all-nil
		// wire value decodes as an empty map for symmetry.
		return &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}}, nil
	}
}
