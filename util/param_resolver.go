package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mohitkumar/agentflow/logger"
	"github.com/oliveagle/jsonpath"
	"go.uber.org/zap"
)

var tokenRegex = regexp.MustCompile("{(.*?)}")

// ResolveParams returns a copy of params where every "{$...}" token inside a
// string value is replaced by the jsonpath lookup of that token against data.
// A string made of a single token is replaced by the raw value so types are
// kept. Tokens that do not resolve are left untouched.
func ResolveParams(data map[string]any, params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	output := make(map[string]any, len(params))
	resolveParams(data, params, output)
	return output
}

func resolveParams(data map[string]any, params map[string]any, output map[string]any) {
	for k, v := range params {
		output[k] = resolveValue(data, v)
	}
}

func resolveValue(data map[string]any, v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		resolveParams(data, val, out)
		return out
	case []any:
		return resolveList(data, val)
	case string:
		return resolveString(data, val)
	default:
		return v
	}
}

func resolveList(data map[string]any, list []any) []any {
	output := make([]any, 0, len(list))
	for _, v := range list {
		output = append(output, resolveValue(data, v))
	}
	return output
}

func resolveString(data map[string]any, s string) any {
	tokens := tokenRegex.FindAllString(s, -1)
	if len(tokens) == 0 {
		return s
	}
	tokenMap := make(map[string]any, len(tokens))
	for _, token := range tokens {
		tmatch := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if !strings.HasPrefix(tmatch, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(data, tmatch)
		if err != nil {
			logger.Debug("can not resolve parameter token", zap.String("token", token), zap.Error(err))
			continue
		}
		tokenMap[token] = value
	}
	if len(tokens) == 1 && tokens[0] == s {
		if value, ok := tokenMap[s]; ok {
			return value
		}
		return s
	}
	newStr := s
	for t, tv := range tokenMap {
		newStr = strings.ReplaceAll(newStr, t, fmt.Sprintf("%v", tv))
	}
	return newStr
}
