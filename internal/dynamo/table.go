package dynamo

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableDefinition describes the single table this service writes to,
// plus its global secondary indexes. All key attributes are strings.
type TableDefinition struct {
	Name         string
	PartitionKey string
	SortKey      string
	GSIs         []GSIDefinition
}

// GSIDefinition describes a Global Secondary Index on the table.
type GSIDefinition struct {
	Name         string
	PartitionKey string
	SortKey      string
}

func (t TableDefinition) GSI(name string) (GSIDefinition, error) {
	for _, g := range t.GSIs {
		if g.Name == name {
			return g, nil
		}
	}
	return GSIDefinition{}, fmt.Errorf("GSI not found: %s", name)
}

// Key is a primary key value pair for the table.
type Key struct {
	Partition string
	Sort      string
}

// AttributeValues renders the key in the table's attribute names.
func (t TableDefinition) AttributeValues(k Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		t.PartitionKey: &types.AttributeValueMemberS{Value: k.Partition},
		t.SortKey:      &types.AttributeValueMemberS{Value: k.Sort},
	}
}

// ExtractKey reads the table's primary key out of a marshaled item.
func (t TableDefinition) ExtractKey(item map[string]types.AttributeValue) (Key, error) {
	pk, ok := item[t.PartitionKey].(*types.AttributeValueMemberS)
	if !ok {
		return Key{}, fmt.Errorf("partition key %q missing or not a string", t.PartitionKey)
	}
	sk, ok := item[t.SortKey].(*types.AttributeValueMemberS)
	if !ok {
		return Key{}, fmt.Errorf("sort key %q missing or not a string", t.SortKey)
	}
	return Key{Partition: pk.Value, Sort: sk.Value}, nil
}
