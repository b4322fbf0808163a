package validation

import (
	"reflect"
	"strings"
	"time"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

var timeType = reflect.TypeOf(time.Time{})

// fieldPresent resolves a dotted path against the record. Collections and line
// item sub-fields have their own rules; every other path is walked by JSON tag.
func fieldPresent(doc *domain.CanonicalDocument, path string) bool {
	head, rest, _ := strings.Cut(path, ".")
	switch head {
	case "parties":
		if rest == "" {
			for _, p := range doc.Parties {
				if p != nil && strings.TrimSpace(p.Name) != "" {
					return true
				}
			}
			return false
		}
		p := doc.Party(domain.PartyRole(rest))
		return p != nil && strings.TrimSpace(p.Name) != ""
	case "line_items":
		if len(doc.LineItems) == 0 {
			return false
		}
		if rest == "" {
			return true
		}
		for _, item := range doc.LineItems {
			if !walk(reflect.ValueOf(item), rest) {
				return false
			}
		}
		return true
	}
	return walk(reflect.ValueOf(doc), path)
}

func walk(v reflect.Value, path string) bool {
	for _, segment := range strings.Split(path, ".") {
		v = indirect(v)
		if !v.IsValid() || v.Kind() != reflect.Struct {
			return false
		}
		v = fieldByTag(v, segment)
		if !v.IsValid() {
			return false
		}
	}
	return present(v)
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func fieldByTag(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if tag == name {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

// present treats numbers as present only when positive; a set pointer counts
// regardless of the value it points to.
func present(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return !v.IsNil()
	case reflect.String:
		return strings.TrimSpace(v.String()) != ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() > 0
	case reflect.Float32, reflect.Float64:
		return v.Float() > 0
	case reflect.Bool:
		return v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() > 0
	case reflect.Struct:
		if v.Type() == timeType {
			return !v.Interface().(time.Time).IsZero()
		}
		return true
	default:
		return v.IsValid() && !v.IsZero()
	}
}
