package dynamo

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"golang.org/x/exp/constraints"
)

// Op is a single field mutation inside an update expression.
type Op interface {
	Field() string
	apply(expression.UpdateBuilder) expression.UpdateBuilder
}

// Set overwrites a field with a value. Idempotent.
func Set(field string, value any) Op {
	return setOp{field: field, value: value}
}

type setOp struct {
	field string
	value any
}

func (o setOp) Field() string { return o.field }

func (o setOp) apply(u expression.UpdateBuilder) expression.UpdateBuilder {
	return u.Set(expression.Name(o.field), expression.Value(o.value))
}

// AddNumber increments a numeric field in place. Not idempotent on its own;
// pair it with a condition when the counter is an invariant.
func AddNumber[T constraints.Integer](field string, delta T) Op {
	return addOp{field: field, delta: int64(delta)}
}

type addOp struct {
	field string
	delta int64
}

func (o addOp) Field() string { return o.field }

func (o addOp) apply(u expression.UpdateBuilder) expression.UpdateBuilder {
	return u.Add(expression.Name(o.field), expression.Value(o.delta))
}

// Remove deletes a field from the item.
func Remove(field string) Op {
	return removeOp{field: field}
}

type removeOp struct {
	field string
}

func (o removeOp) Field() string { return o.field }

func (o removeOp) apply(u expression.UpdateBuilder) expression.UpdateBuilder {
	return u.Remove(expression.Name(o.field))
}
