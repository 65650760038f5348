package format

import (
	"regexp"
	"strings"
)

var (
	inlineSpec   = regexp.MustCompile(`^(\w+)(?:\(([^)]+)\))?$`)
	currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)
)

// ParseSpec splits an inline formatter spec such as "currency(EUR)" into
// the formatter name and its options. A spec that does not fit the
// name(args) shape is returned whole as the name with empty options, which
// the registry then treats as unknown.
func ParseSpec(spec string) (string, Options) {
	spec = strings.TrimSpace(spec)
	m := inlineSpec.FindStringSubmatch(spec)
	if m == nil {
		return spec, Options{}
	}
	return m[1], ParseOptions(m[2])
}

// ParseOptions reads formatter arguments. A bare three-letter upper-case
// argument is a currency code, any other bare argument is a format, and
// "key:value,key:value" sets arbitrary keys. Malformed pairs are skipped.
func ParseOptions(args string) Options {
	opts := Options{}
	if args == "" {
		return opts
	}

	if !strings.ContainsAny(args, ":,") {
		if currencyCode.MatchString(args) {
			opts["currency"] = args
		} else {
			opts["format"] = args
		}
		return opts
	}

	for _, pair := range strings.Split(args, ",") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key != "" && value != "" {
			opts[key] = value
		}
	}
	return opts
}
