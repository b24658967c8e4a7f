package catalog

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"

	sqlite "modernc.org/sqlite"
)

// patternCacheSize bounds the compiled patterns kept for the regexp function.
const patternCacheSize = 64

var patternCache = struct {
	sync.Mutex
	entries map[string]*regexp.Regexp
}{entries: make(map[string]*regexp.Regexp)}

func init() {
	// Enables `value REGEXP pattern` in SQL. SQLite calls regexp(pattern, value).
	sqlite.MustRegisterDeterministicScalarFunction("regexp", 2, regexpFunc)
}

func regexpFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, ok := asString(args[0])
	if !ok {
		return nil, nil
	}
	value, ok := asString(args[1])
	if !ok {
		return int64(0), nil
	}
	re, err := compileCached(pattern)
	if err != nil {
		return nil, err
	}
	if re.MatchString(value) {
		return int64(1), nil
	}
	return int64(0), nil
}

func compileCached(pattern string) (*regexp.Regexp, error) {
	patternCache.Lock()
	defer patternCache.Unlock()
	if re, ok := patternCache.entries[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regexp: %w", err)
	}
	if len(patternCache.entries) >= patternCacheSize {
		clear(patternCache.entries)
	}
	patternCache.entries[pattern] = re
	return re, nil
}

func asString(v driver.Value) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []byte:
		return string(val), true
	default:
		return "", false
	}
}
