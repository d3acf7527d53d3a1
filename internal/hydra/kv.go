package hydra

import (
	"fmt"
	"sort"
	"strings"
)

// ParseKVString parses a string of space-separated key=value tokens into a
// map. Values may be single- or double-quoted to contain spaces or equals
// signs; inside double quotes a quote is escaped as \". A bare key= yields an
// empty value. A token without = is a hard parse error.
//
// The grammar is a CLI contract with the workload binary and must not drift.
func ParseKVString(s string) (map[string]string, error) {
	out := map[string]string{}
	runes := []rune(s)
	i := 0

	for i < len(runes) {
		// Skip token separators.
		for i < len(runes) && runes[i] == ' ' {
			i++
		}
		if i >= len(runes) {
			break
		}

		// Key runs to the first '='.
		start := i
		for i < len(runes) && runes[i] != '=' && runes[i] != ' ' {
			i++
		}
		if i >= len(runes) || runes[i] != '=' {
			return nil, fmt.Errorf("malformed key-value token %q: missing '='", string(runes[start:i]))
		}
		key := string(runes[start:i])
		i++ // consume '='

		value, next, err := scanValue(runes, i)
		if err != nil {
			return nil, err
		}
		out[key] = value
		i = next
	}

	return out, nil
}

func scanValue(runes []rune, i int) (string, int, error) {
	if i >= len(runes) || runes[i] == ' ' {
		// key= at end of token means explicit empty value.
		return "", i, nil
	}

	if quote := runes[i]; quote == '\'' || quote == '"' {
		i++
		var b strings.Builder
		for i < len(runes) {
			switch {
			case quote == '"' && runes[i] == '\\' && i+1 < len(runes) && runes[i+1] == '"':
				b.WriteRune('"')
				i += 2
			case runes[i] == quote:
				return b.String(), i + 1, nil
			default:
				b.WriteRune(runes[i])
				i++
			}
		}
		return "", i, fmt.Errorf("unterminated %c-quoted value", quote)
	}

	start := i
	for i < len(runes) && runes[i] != ' ' {
		i++
	}
	return string(runes[start:i]), i, nil
}

// EncodeKVString is the inverse of ParseKVString for metadata maps. Keys are
// emitted in sorted order; values containing spaces, equals signs or quotes
// are double-quoted with embedded quotes escaped.
func EncodeKVString(kv map[string]string) string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tokens := make([]string, 0, len(keys))
	for _, k := range keys {
		tokens = append(tokens, k+"="+encodeValue(kv[k]))
	}
	return strings.Join(tokens, " ")
}

func encodeValue(v string) string {
	if v == "" || !strings.ContainsAny(v, " =\"'") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}
