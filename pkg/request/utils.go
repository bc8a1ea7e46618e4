package request

import (
	jsonlib "encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/spf13/cast"
)

const headerAuthorization = "Authorization"

// joinPath joins the URL and the path with exactly one "/".
// An empty URL results in a root relative path, it is resolved by the Sender, for example against a base URL.
func joinPath(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func escapePathSegment(segment string) string {
	return url.PathEscape(segment)
}

// appendQuery encodes query parameters to the URL, keys are in insertion order.
func appendQuery(urlStr string, query *orderedmap.OrderedMap) string {
	var pairs []string
	for _, k := range query.Keys() {
		values, _ := query.Get(k)
		for _, v := range values.([]string) {
			pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	if len(pairs) == 0 {
		return urlStr
	}

	// Query must precede the fragment
	base, fragment, hasFragment := strings.Cut(urlStr, "#")

	var out strings.Builder
	out.WriteString(base)
	switch {
	case !strings.Contains(base, "?"):
		out.WriteString("?")
	case !strings.HasSuffix(base, "?") && !strings.HasSuffix(base, "&"):
		out.WriteString("&")
	}
	out.WriteString(strings.Join(pairs, "&"))
	if hasFragment {
		out.WriteString("#")
		out.WriteString(fragment)
	}
	return out.String()
}

// queryValues normalizes a query parameter value, see HTTPRequest.AndQueryParam.
func queryValues(value any) []string {
	if isNil(value) {
		return nil
	}
	if _, ok := value.([]byte); !ok {
		v := reflect.ValueOf(value)
		if kind := v.Kind(); kind == reflect.Slice || kind == reflect.Array {
			out := make([]string, 0, v.Len())
			for i := range v.Len() {
				item := v.Index(i).Interface()
				if isNil(item) {
					continue
				}
				out = append(out, castToString(item))
			}
			return out
		}
	}
	return []string{castToString(value)}
}

func castToString(v any) string {
	switch value := v.(type) {
	case time.Time:
		return strconv.FormatInt(value.UTC().UnixMilli(), 10)
	case *time.Time:
		return strconv.FormatInt(value.UTC().UnixMilli(), 10)
	case bool:
		return strconv.FormatBool(value)
	case *orderedmap.OrderedMap:
		// Standard json encoding library is used.
		// JsonIter lib returns non-compact JSON,
		// if custom OrderedMap.MarshalJSON method is used.
		if out, err := jsonlib.Marshal(value); err == nil {
			return string(out)
		}
	}

	// Other types
	if out, err := cast.ToStringE(v); err == nil {
		return out
	}
	return fmt.Sprint(v)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
