package findings

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/CosmoTheDev/pct/models"
)

var (
	// ErrNoPayload means the response held nothing JSON-shaped.
	ErrNoPayload = errors.New("no JSON payload in response")
	// ErrUnexpectedShape means the payload decoded but is neither a findings
	// object nor a bare array.
	ErrUnexpectedShape = errors.New("unexpected payload shape")
)

// Unit identifies one analyzed source unit.
type Unit struct {
	FilePath string
	Language string
	Pass     models.AnalysisPass
}

// NormalizationError reports an analyzer response that could not be parsed.
// The runner records it as a failed unit and carries on with the batch.
type NormalizationError struct {
	FilePath string
	Pass     models.AnalysisPass
	Excerpt  string
	Err      error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalizing %s response for %s: %v (excerpt: %q)", e.Pass, e.FilePath, e.Err, e.Excerpt)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// Normalizer turns raw analyzer text into validated findings.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer returns a Normalizer logging skipped items to logger.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize parses raw into findings located in unit.FilePath.
// Items without a message are skipped. Unknown severities and types are
// downgraded to info/quality with the raw value kept in the message.
func (n *Normalizer) Normalize(raw string, unit Unit) ([]models.Finding, error) {
	payload, ok := ExtractJSON(raw)
	if !ok {
		return nil, n.fail(raw, unit, ErrNoPayload)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, n.fail(raw, unit, err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		list, present := v["findings"]
		if !present || list == nil {
			return []models.Finding{}, nil
		}
		arr, ok := list.([]any)
		if !ok {
			return nil, n.fail(raw, unit, fmt.Errorf("%w: findings is %T", ErrUnexpectedShape, list))
		}
		items = arr
	default:
		return nil, n.fail(raw, unit, fmt.Errorf("%w: %T", ErrUnexpectedShape, doc))
	}

	out := make([]models.Finding, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			n.logger.Warn("findings: skipping non-object item", "file", unit.FilePath, "pass", unit.Pass, "index", i)
			continue
		}
		f, ok := n.normalizeItem(obj, unit, i)
		if ok {
			out = append(out, f)
		}
	}
	return dedup(out), nil
}

func (n *Normalizer) normalizeItem(obj map[string]any, unit Unit, idx int) (models.Finding, bool) {
	message := collapseSpace(firstNonEmpty(stringField(obj, "message"), stringField(obj, "description"), stringField(obj, "title")))
	if message == "" {
		n.logger.Warn("findings: skipping item without message", "file", unit.FilePath, "pass", unit.Pass, "index", idx)
		return models.Finding{}, false
	}

	rawSev := stringField(obj, "severity")
	rawType := firstNonEmpty(stringField(obj, "type"), stringField(obj, "category"))

	sev, sevOK := models.ParseSeverity(rawSev)
	typ, typOK := models.ParseFindingType(rawType)
	switch {
	case !sevOK:
		// An unknown severity demotes the whole classification.
		if rawSev == "" {
			message += " [missing severity]"
		} else {
			message += fmt.Sprintf(" [unrecognized severity %q]", rawSev)
		}
		if rawType != "" {
			message += fmt.Sprintf(" [reported type %q]", rawType)
		}
		sev, typ = models.SeverityInfo, models.TypeQuality
	case rawType == "":
		typ = unit.Pass.DefaultType()
	case !typOK:
		message += fmt.Sprintf(" [unrecognized type %q]", rawType)
		typ = models.TypeQuality
	}

	loc := models.Location{
		FilePath:  cleanPath(unit.FilePath),
		Line:      positiveIntField(obj, "line", "line_number", "start_line"),
		Column:    positiveIntField(obj, "column", "col", "start_column"),
		EndLine:   positiveIntField(obj, "end_line"),
		EndColumn: positiveIntField(obj, "end_column"),
	}

	f, err := models.NewFinding(typ, sev, message, loc,
		models.WithConfidence(confidenceField(obj)),
		models.WithRemediation(strings.TrimSpace(firstNonEmpty(stringField(obj, "remediation"), stringField(obj, "fix"), stringField(obj, "recommendation")))),
		models.WithCodeSnippet(firstNonEmpty(stringField(obj, "code_snippet"), stringField(obj, "snippet"))),
		models.WithRuleID(strings.TrimSpace(firstNonEmpty(stringField(obj, "rule_id"), stringField(obj, "rule")))),
	)
	if err != nil {
		n.logger.Warn("findings: dropping invalid item", "file", unit.FilePath, "pass", unit.Pass, "index", idx, "error", err)
		return models.Finding{}, false
	}
	return f, true
}

func (n *Normalizer) fail(raw string, unit Unit, err error) error {
	return &NormalizationError{
		FilePath: unit.FilePath,
		Pass:     unit.Pass,
		Excerpt:  truncate(raw, 200),
		Err:      err,
	}
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func positiveIntField(obj map[string]any, keys ...string) *int {
	for _, k := range keys {
		v, present := obj[k]
		if !present {
			continue
		}
		if i, ok := anyToInt(v); ok && i > 0 {
			return &i
		}
	}
	return nil
}

func confidenceField(obj map[string]any) float64 {
	v, present := obj["confidence"]
	if !present {
		return 1.0
	}
	c, ok := anyToFloat(v)
	if !ok || math.IsNaN(c) {
		return 1.0
	}
	return math.Max(0, math.Min(1, c))
}

func anyToInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

func anyToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// fingerprint identifies a finding within one unit.
func fingerprint(f models.Finding) string {
	parts := []string{
		string(f.Type),
		string(f.Severity),
		strconv.Itoa(f.Location.LineOr(0)),
		strings.ToLower(collapseSpace(f.Message)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// dedup keeps the first occurrence of each fingerprint.
func dedup(in []models.Finding) []models.Finding {
	out := make([]models.Finding, 0, len(in))
	seen := map[string]struct{}{}
	for _, f := range in {
		k := fingerprint(f)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func cleanPath(path string) string {
	p := strings.TrimSpace(path)
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(p, "./")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
