// Package ingest turns the two wire encodings of an alert (structured JSON and the
// legacy flat XML) into canonical domain records.
//
// Failures are isolated: a bad field leaves that field unset, a bad record is
// omitted from its batch, and every omission is counted in the returned Report.
package ingest

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LegacyTimeLayout is the timestamp format of the XML endpoint (no zone).
const LegacyTimeLayout = "2006-01-02 15:04:05.000000"

// legacyParseLayout also accepts fewer or no fractional digits.
const legacyParseLayout = "2006-01-02 15:04:05.999999999"

// Fallback registry names used as Report.Fallbacks keys.
const (
	FallbackType      = "type"
	FallbackLevel     = "level"
	FallbackStatus    = "status"
	FallbackEventType = "event_type"
	FallbackSource    = "source"
)

// Report 记录一次解码中被跳过/回退的内容
type Report struct {
	Records        int
	SkippedRecords int
	SkippedFields  int
	Fallbacks      map[string]int
	// Truncated is set when the input stopped being readable part way through;
	// records read before that point are still returned.
	Truncated bool
	Warnings  []string
}

// Clean reports whether nothing was skipped, defaulted or truncated.
func (r Report) Clean() bool {
	return r.SkippedRecords == 0 && r.SkippedFields == 0 && len(r.Fallbacks) == 0 && !r.Truncated
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) fallback(name string) {
	if r.Fallbacks == nil {
		r.Fallbacks = map[string]int{}
	}
	r.Fallbacks[name]++
}

func (r *Report) merge(o Report) {
	r.Records += o.Records
	r.SkippedRecords += o.SkippedRecords
	r.SkippedFields += o.SkippedFields
	r.Truncated = r.Truncated || o.Truncated
	r.Warnings = append(r.Warnings, o.Warnings...)
	for k, v := range o.Fallbacks {
		if r.Fallbacks == nil {
			r.Fallbacks = map[string]int{}
		}
		r.Fallbacks[k] += v
	}
}

// Normalizer is safe for concurrent use.
type Normalizer struct {
	logger *zap.Logger
	loc    *time.Location

	mu        sync.Mutex
	fallbacks map[string]int64
}

type Option func(*Normalizer)

// WithLocation sets the zone used for legacy XML timestamps (default time.Local).
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

func NewNormalizer(logger *zap.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Normalizer{
		logger:    logger,
		loc:       time.Local,
		fallbacks: map[string]int64{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// FallbackCounts returns the cumulative number of unrecognized classification codes
// seen by this normalizer, keyed by registry.
func (n *Normalizer) FallbackCounts() map[string]int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]int64, len(n.fallbacks))
	for k, v := range n.fallbacks {
		out[k] = v
	}
	return out
}

// observe records a finished decode: cumulative counters plus one log line.
func (n *Normalizer) observe(format string, rep Report) {
	if len(rep.Fallbacks) > 0 {
		n.mu.Lock()
		for k, v := range rep.Fallbacks {
			n.fallbacks[k] += int64(v)
		}
		n.mu.Unlock()
	}
	if rep.Clean() {
		return
	}
	n.logger.Warn("Ingest normalized with omissions",
		zap.String("format", format),
		zap.Int("records", rep.Records),
		zap.Int("skipped_records", rep.SkippedRecords),
		zap.Int("skipped_fields", rep.SkippedFields),
		zap.Any("fallbacks", rep.Fallbacks),
		zap.Bool("truncated", rep.Truncated),
		zap.Strings("warnings", rep.Warnings),
	)
}

func (n *Normalizer) parseLegacyTime(s string) (time.Time, error) {
	return time.ParseInLocation(legacyParseLayout, s, n.loc)
}

// FormatLegacyTime renders t in the XML endpoint's format and zone.
func (n *Normalizer) FormatLegacyTime(t time.Time) string {
	return t.In(n.loc).Format(LegacyTimeLayout)
}
