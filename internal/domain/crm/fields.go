package crm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/okian/arena/internal/domain/model"
)

var validate = validator.New() //nolint:gochecknoglobals // validator caches rule parsing

// Logical field names. They double as the field names in validation errors.
const (
	fieldEventID           = "event_id"
	fieldRecordID          = "record_id"
	fieldExternalUserID    = "external_user_id"
	fieldDealershipID      = "dealership_id"
	fieldMonth             = "month"
	fieldYear              = "year"
	fieldTimestamp         = "timestamp"
	fieldLeadsCreated      = "leads_created"
	fieldCarsSold          = "cars_sold"
	fieldVehicleValueTotal = "vehicle_value_total"
	fieldProfitTotal       = "profit_total"
	fieldServicesCompleted = "services_completed"
	fieldHoursBilled       = "hours_billed"
	fieldHoursWorked       = "hours_worked"
	fieldServiceProfit     = "service_profit"
)

// Validator rules shared by the schemas.
const (
	ruleRequired = "required"
	ruleMonth    = "omitempty,min=1,max=12"
	ruleYear     = "omitempty,min=1000,max=9999"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindIdentifier          // string, or a number rendered as a string
	kindInt
	kindNumber
)

// field is one logical value and the ordered aliases it may arrive under.
// Aliases are dot-separated paths into nested objects.
type field struct {
	name    string
	kind    fieldKind
	aliases []string
	rule    string
}

type schema []field

func str(name string, rule string, aliases ...string) field {
	return field{name: name, kind: kindString, aliases: aliases, rule: rule}
}

func ident(name string, aliases ...string) field {
	return field{name: name, kind: kindIdentifier, aliases: aliases}
}

func integer(name string, rule string, aliases ...string) field {
	return field{name: name, kind: kindInt, aliases: aliases, rule: rule}
}

func number(name string, aliases ...string) field {
	return field{name: name, kind: kindNumber, aliases: aliases}
}

// fieldSet holds the resolved values of one schema.
type fieldSet struct {
	strs map[string]string
	ints map[string]int
	nums map[string]float64
}

func (f fieldSet) str(name string) string  { return f.strs[name] }
func (f fieldSet) int(name string) int     { return f.ints[name] }
func (f fieldSet) num(name string) float64 { return f.nums[name] }

// metrics reads the standard metric fields. Fields missing from the schema are zero.
func (f fieldSet) metrics() model.Metrics {
	return model.Metrics{
		LeadsCreated:      f.num(fieldLeadsCreated),
		CarsSold:          f.num(fieldCarsSold),
		VehicleValueTotal: f.num(fieldVehicleValueTotal),
		ProfitTotal:       f.num(fieldProfitTotal),
		ServicesCompleted: f.num(fieldServicesCompleted),
		HoursBilled:       f.num(fieldHoursBilled),
		HoursWorked:       f.num(fieldHoursWorked),
	}
}

// object is a decoded JSON object. Numbers are kept as json.Number.
type object map[string]any

func decodeObject(src model.SourceSystem, payload []byte) (object, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, invalid(src, "", "json", err.Error())
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, invalid(src, "", "type", "payload must be a JSON object")
	}
	return obj, nil
}

// has reports whether any of keys is present with a non-null value.
func (o object) has(keys ...string) bool {
	for _, k := range keys {
		if v, ok := o[k]; ok && v != nil {
			return true
		}
	}
	return false
}

// lookup walks a dotted path. A missing or null leaf is absent; a non-object
// in the middle of the path is a type violation.
func (o object) lookup(path string) (any, error) {
	parts := strings.Split(path, ".")
	var cur any = map[string]any(o)
	for i, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s must be an object", strings.Join(parts[:i], "."))
		}
		cur, ok = m[p]
		if !ok || cur == nil {
			return nil, nil
		}
	}
	return cur, nil
}

func blank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// resolve reads every field of sc from obj. For each field the first alias
// holding a non-null, non-blank value wins.
func resolve(src model.SourceSystem, prefix string, obj object, sc schema) (fieldSet, error) {
	set := fieldSet{
		strs: make(map[string]string),
		ints: make(map[string]int),
		nums: make(map[string]float64),
	}
	for _, f := range sc {
		path := joinPath(prefix, f.name)
		var (
			val   any
			alias string
		)
		for _, a := range f.aliases {
			v, err := obj.lookup(a)
			if err != nil {
				return fieldSet{}, invalid(src, joinPath(prefix, a), "type", err.Error())
			}
			if v != nil && !blank(v) {
				val, alias = v, a
				break
			}
		}
		switch f.kind {
		case kindString, kindIdentifier:
			s, err := asString(val, f.kind == kindIdentifier)
			if err != nil {
				return fieldSet{}, invalid(src, joinPath(prefix, alias), "type", err.Error())
			}
			if err := check(src, path, s, f); err != nil {
				return fieldSet{}, err
			}
			set.strs[f.name] = s
		case kindInt:
			n, err := asInt(val)
			if err != nil {
				return fieldSet{}, invalid(src, joinPath(prefix, alias), "type", err.Error())
			}
			if err := check(src, path, n, f); err != nil {
				return fieldSet{}, err
			}
			set.ints[f.name] = n
		case kindNumber:
			set.nums[f.name] = toNumber(val)
		}
	}
	return set, nil
}

func check(src model.SourceSystem, path string, v any, f field) error {
	if f.rule == "" {
		return nil
	}
	err := validate.Var(v, f.rule)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		constraint := verrs[0].Tag()
		if p := verrs[0].Param(); p != "" {
			constraint += "=" + p
		}
		return invalid(src, path, constraint, "accepted as "+strings.Join(f.aliases, ", "))
	}
	return invalid(src, path, "invalid", err.Error())
}

func asString(v any, allowNumber bool) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case json.Number:
		if allowNumber {
			return t.String(), nil
		}
	}
	return "", errors.New("expected string")
}

func asInt(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), nil
		}
		// Integral floats such as 3.0 or 3e0 are integers too.
		d, err := decimal.NewFromString(t.String())
		if err != nil || !d.IsInteger() || !d.BigInt().IsInt64() {
			return 0, errors.New("expected integer")
		}
		return int(d.IntPart()), nil
	}
	return 0, errors.New("expected integer")
}

// toNumber coerces numbers and numeric strings. Anything else, including
// values outside the float64 range, is zero.
func toNumber(v any) float64 {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0
	}
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return finite(d.InexactFloat64())
}

// finite maps infinities and NaN to zero.
func finite(f float64) float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

// recordList returns the objects stored under key, which may hold a single
// object or an array of objects.
func recordList(src model.SourceSystem, obj object, key string) ([]object, error) {
	switch t := obj[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []object{t}, nil
	case []any:
		out := make([]object, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, invalid(src, fmt.Sprintf("%s[%d]", key, i), "type", "expected object")
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, invalid(src, key, "type", "expected object or array of objects")
	}
}

func recordPrefix(i int) string {
	return fmt.Sprintf("records[%d]", i)
}

// rawJSON re-encodes obj for the audit ledger. Keys come out sorted, so the
// same record always produces the same bytes.
func rawJSON(obj object) json.RawMessage {
	b, err := json.Marshal(map[string]any(obj))
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
