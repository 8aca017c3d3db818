package dynamotest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Evaluator for the canonical expression strings the SDK's
// feature/dynamodb/expression builder emits ("#0 <= :0",
// "attribute_not_exists (#0)", "(#0 = :0) AND (begins_with (#1, :1))",
// "SET #0 = :0, #1 = :1", "ADD #0 :0", "REMOVE #0"). This store only ever
// receives builder output, so no attempt is made to cover the full
// DynamoDB grammar.

func tokenize(s string) []string {
	var toks []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(' || c == ')' || c == ',':
			toks = append(toks, string(c))
			i++
		case c == '=':
			toks = append(toks, "=")
			i++
		case c == '<':
			if i+1 < len(s) && (s[i+1] == '=' || s[i+1] == '>') {
				toks = append(toks, s[i:i+2])
				i += 2
			} else {
				toks = append(toks, "<")
				i++
			}
		case c == '>':
			if i+1 < len(s) && s[i+1] == '=' {
				toks = append(toks, ">=")
				i += 2
			} else {
				toks = append(toks, ">")
				i++
			}
		default:
			j := i
			for j < len(s) && !strings.ContainsRune(" \t\n\r(),=<>", rune(s[j])) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks
}

type evalEnv struct {
	names  map[string]string
	values map[string]types.AttributeValue
	item   map[string]types.AttributeValue
}

// resolveName maps a #placeholder (or a literal path) to an attribute name.
func (e *evalEnv) resolveName(tok string) (string, error) {
	if strings.HasPrefix(tok, "#") {
		name, ok := e.names[tok]
		if !ok {
			return "", fmt.Errorf("unresolved name placeholder %q", tok)
		}
		return name, nil
	}
	return tok, nil
}

// resolveOperand returns the attribute value a token denotes, and whether
// it is present.
func (e *evalEnv) resolveOperand(tok string) (types.AttributeValue, bool, error) {
	if strings.HasPrefix(tok, ":") {
		v, ok := e.values[tok]
		if !ok {
			return nil, false, fmt.Errorf("unresolved value placeholder %q", tok)
		}
		return v, true, nil
	}
	name, err := e.resolveName(tok)
	if err != nil {
		return nil, false, err
	}
	v, ok := e.item[name]
	return v, ok, nil
}

type condParser struct {
	toks []string
	pos  int
	env  *evalEnv
}

func evalCondition(expr string, env *evalEnv) (bool, error) {
	p := &condParser{toks: tokenize(expr), env: env}
	ok, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.pos != len(p.toks) {
		return false, fmt.Errorf("trailing tokens in condition %q", expr)
	}
	return ok, nil
}

func (p *condParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *condParser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *condParser) expect(tok string) error {
	if got := p.next(); got != tok {
		return fmt.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

func (p *condParser) parseOr() (bool, error) {
	ok, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for p.peek() == "OR" {
		p.next()
		rhs, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		ok = ok || rhs
	}
	return ok, nil
}

func (p *condParser) parseAnd() (bool, error) {
	ok, err := p.parseUnary()
	if err != nil {
		return false, err
	}
	for p.peek() == "AND" {
		p.next()
		rhs, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		ok = ok && rhs
	}
	return ok, nil
}

func (p *condParser) parseUnary() (bool, error) {
	switch tok := p.peek(); tok {
	case "NOT":
		p.next()
		ok, err := p.parseUnary()
		return !ok, err
	case "(":
		p.next()
		ok, err := p.parseOr()
		if err != nil {
			return false, err
		}
		return ok, p.expect(")")
	case "attribute_exists", "attribute_not_exists", "begins_with":
		return p.parseFunc()
	default:
		return p.parseComparison()
	}
}

func (p *condParser) parseFunc() (bool, error) {
	fn := p.next()
	if err := p.expect("("); err != nil {
		return false, err
	}
	var args []string
	for {
		args = append(args, p.next())
		if p.peek() != "," {
			break
		}
		p.next()
	}
	if err := p.expect(")"); err != nil {
		return false, err
	}
	switch fn {
	case "attribute_exists", "attribute_not_exists":
		if len(args) != 1 {
			return false, fmt.Errorf("%s takes one argument", fn)
		}
		name, err := p.env.resolveName(args[0])
		if err != nil {
			return false, err
		}
		_, present := p.env.item[name]
		if fn == "attribute_exists" {
			return present, nil
		}
		return !present, nil
	case "begins_with":
		if len(args) != 2 {
			return false, fmt.Errorf("begins_with takes two arguments")
		}
		subject, present, err := p.env.resolveOperand(args[0])
		if err != nil || !present {
			return false, err
		}
		prefix, _, err := p.env.resolveOperand(args[1])
		if err != nil {
			return false, err
		}
		s, ok1 := subject.(*types.AttributeValueMemberS)
		pre, ok2 := prefix.(*types.AttributeValueMemberS)
		if !ok1 || !ok2 {
			return false, nil
		}
		return strings.HasPrefix(s.Value, pre.Value), nil
	default:
		return false, fmt.Errorf("unsupported function %q", fn)
	}
}

func (p *condParser) parseComparison() (bool, error) {
	left := p.next()
	op := p.next()
	right := p.next()
	switch op {
	case "=", "<>", "<", "<=", ">", ">=":
	default:
		return false, fmt.Errorf("unsupported comparison operator %q", op)
	}
	lv, lok, err := p.env.resolveOperand(left)
	if err != nil {
		return false, err
	}
	rv, rok, err := p.env.resolveOperand(right)
	if err != nil {
		return false, err
	}
	if !lok || !rok {
		// Comparisons against an absent attribute never match.
		return false, nil
	}
	return compareValues(lv, rv, op)
}

func compareValues(a, b types.AttributeValue, op string) (bool, error) {
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return false, nil
		}
		an, err := strconv.ParseFloat(av.Value, 64)
		if err != nil {
			return false, err
		}
		bn, err := strconv.ParseFloat(bv.Value, 64)
		if err != nil {
			return false, err
		}
		return compareOrdered(an, bn, op), nil
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return false, nil
		}
		return compareOrdered(av.Value, bv.Value, op), nil
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok {
			return false, nil
		}
		switch op {
		case "=":
			return av.Value == bv.Value, nil
		case "<>":
			return av.Value != bv.Value, nil
		}
		return false, fmt.Errorf("operator %q not defined for booleans", op)
	default:
		return false, fmt.Errorf("unsupported comparison type %T", a)
	}
}

func compareOrdered[T string | float64](a, b T, op string) bool {
	switch op {
	case "=":
		return a == b
	case "<>":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

// applyUpdate applies an update expression to a copy of the item.
func applyUpdate(expr string, env *evalEnv) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(env.item)+2)
	for k, v := range env.item {
		out[k] = v
	}
	toks := tokenize(expr)
	i := 0
	section := ""
	for i < len(toks) {
		switch toks[i] {
		case "SET", "ADD", "REMOVE", "DELETE":
			section = toks[i]
			i++
			continue
		case ",":
			i++
			continue
		}
		switch section {
		case "SET":
			// path = operand
			name, err := env.resolveName(toks[i])
			if err != nil {
				return nil, err
			}
			if i+2 >= len(toks) || toks[i+1] != "=" {
				return nil, fmt.Errorf("malformed SET clause near %q", toks[i])
			}
			v, present, err := env.resolveOperand(toks[i+2])
			if err != nil {
				return nil, err
			}
			if !present {
				return nil, fmt.Errorf("SET from absent operand %q", toks[i+2])
			}
			out[name] = v
			i += 3
		case "ADD":
			// path value
			name, err := env.resolveName(toks[i])
			if err != nil {
				return nil, err
			}
			if i+1 >= len(toks) {
				return nil, fmt.Errorf("malformed ADD clause near %q", toks[i])
			}
			delta, _, err := env.resolveOperand(toks[i+1])
			if err != nil {
				return nil, err
			}
			dn, ok := delta.(*types.AttributeValueMemberN)
			if !ok {
				return nil, fmt.Errorf("ADD requires a numeric operand")
			}
			current := int64(0)
			if cur, ok := out[name].(*types.AttributeValueMemberN); ok {
				current, err = strconv.ParseInt(cur.Value, 10, 64)
				if err != nil {
					return nil, err
				}
			}
			d, err := strconv.ParseInt(dn.Value, 10, 64)
			if err != nil {
				return nil, err
			}
			out[name] = &types.AttributeValueMemberN{Value: strconv.FormatInt(current+d, 10)}
			i += 2
		case "REMOVE":
			name, err := env.resolveName(toks[i])
			if err != nil {
				return nil, err
			}
			delete(out, name)
			i++
		default:
			return nil, fmt.Errorf("unexpected token %q outside update section", toks[i])
		}
	}
	return out, nil
}
