package checks

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// evalJSONExpr implements a tiny JSON expression language:
// ".path.to.field == <literal>" where literal is a double-quoted string,
// true, false, null, an integer, or a float. Path navigation is
// dot-separated keys applied to the parsed response body.
func evalJSONExpr(body []byte, expr string) (bool, error) {
	parts := strings.SplitN(expr, "==", 2)
	if len(parts) != 2 {
		return false, fmt.Errorf("unsupported JSON expression syntax")
	}
	path := strings.TrimSpace(parts[0])
	literal := strings.TrimSpace(parts[1])

	if !strings.HasPrefix(path, ".") {
		return false, fmt.Errorf("unsupported JSON expression syntax")
	}

	wantVal, err := parseLiteral(literal)
	if err != nil {
		return false, err
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, fmt.Errorf("parsing response body: %w", err)
	}

	gotVal, ok := navigate(parsed, path)
	if !ok {
		return false, nil
	}

	return jsonValuesEqual(gotVal, wantVal), nil
}

func navigate(v any, path string) (any, bool) {
	segments := strings.Split(strings.TrimPrefix(path, "."), ".")
	cur := v
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func parseLiteral(s string) (any, error) {
	switch {
	case s == "true":
		return true, nil
	case s == "false":
		return false, nil
	case s == "null":
		return nil, nil
	case len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`):
		return s[1 : len(s)-1], nil
	default:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return float64(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("unsupported JSON expression syntax")
	}
}

func jsonValuesEqual(got, want any) bool {
	gotNum, gotIsNum := got.(float64)
	wantNum, wantIsNum := want.(float64)
	if gotIsNum && wantIsNum {
		return gotNum == wantNum
	}
	return got == want
}
