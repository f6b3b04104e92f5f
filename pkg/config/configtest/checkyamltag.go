package configtest

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"go.uber.org/multierr"
	"google.golang.org/protobuf/proto"
)

var protoMessageType = reflect.TypeOf((*proto.Message)(nil)).Elem()

type yamlTagChecker struct {
	seen map[reflect.Type]struct{}
	skip map[reflect.Type]struct{}
}

func (c *yamlTagChecker) check(t reflect.Type) error {
	if _, ok := c.seen[t]; ok {
		return nil
	}
	c.seen[t] = struct{}{}
	if _, ok := c.skip[t]; ok {
		return nil
	}

	switch t.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.Pointer:
		return c.check(t.Elem())
	case reflect.Struct:
		if reflect.PointerTo(t).Implements(protoMessageType) {
			return nil
		}

		var errs error
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() || field.Type.Kind() == reflect.Bool {
				continue
			}
			if field.Tag.Get("config") == "allowempty" {
				continue
			}

			parts := strings.Split(field.Tag.Get("yaml"), ",")
			if parts[0] == "-" {
				continue
			}
			if !slices.Contains(parts, "omitempty") && !slices.Contains(parts, "inline") {
				errs = multierr.Append(errs, fmt.Errorf("%s/%s.%s missing omitempty tag", t.PkgPath(), t.Name(), field.Name))
			}
			errs = multierr.Append(errs, c.check(field.Type))
		}
		return errs
	default:
		return nil
	}
}

// CheckYAMLTags verifies every non-bool field reachable from config carries omitempty,
// so that defaults survive a marshal/overlay round. Types in skip are not descended into.
func CheckYAMLTags(config any, skip ...any) error {
	c := &yamlTagChecker{
		seen: map[reflect.Type]struct{}{},
		skip: map[reflect.Type]struct{}{},
	}
	for _, s := range skip {
		c.skip[reflect.TypeOf(s)] = struct{}{}
	}
	return c.check(reflect.TypeOf(config))
}
