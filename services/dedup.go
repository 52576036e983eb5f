package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gumtree-scraper/models"
	"gumtree-scraper/storage"
)

// KeyOf derives the dedup key of a record. The job id wins when present; numeric forms
// such as 1339462428, 1339462428.0 and "1339462428.0" all give the same key. Without a
// job id the trimmed URL is used. ok is false when the record has neither.
func KeyOf(jobID any, url string) (key string, ok bool) {
	if id := canonicalJobID(jobID); id != "" {
		return id, true
	}
	if u := strings.TrimSpace(url); u != "" {
		return "url:" + u, true
	}
	return "", false
}

func canonicalJobID(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return canonicalNumeric(strings.TrimSpace(x))
	case json.Number:
		return canonicalNumeric(x.String())
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	}
	return canonicalNumeric(strings.TrimSpace(fmt.Sprint(v)))
}

// canonicalNumeric strips a zero fractional part from numeric strings ("123.0" -> "123").
func canonicalNumeric(s string) string {
	if s == "" || !strings.Contains(s, ".") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	if c := formatFloat(f); !strings.ContainsAny(c, ".e") {
		return c
	}
	return s
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func rowKey(r storage.Row) (string, bool) {
	url, _ := r["url"].(string)
	return KeyOf(r["job_id"], url)
}

// Plan returns the records of batch that are neither in the store nor repeated earlier in
// the batch, in their original order. Records without any key are always kept.
func Plan(batch []models.Listing, existing []storage.Row) []models.Listing {
	known := make(map[string]struct{}, len(existing)+len(batch))
	for _, r := range existing {
		if k, ok := rowKey(r); ok {
			known[k] = struct{}{}
		}
	}

	toAppend := make([]models.Listing, 0, len(batch))
	for _, l := range batch {
		k, ok := KeyOf(l.JobID, l.URL)
		if !ok {
			toAppend = append(toAppend, l)
			continue
		}
		if _, dup := known[k]; dup {
			continue
		}
		known[k] = struct{}{}
		toAppend = append(toAppend, l)
	}
	return toAppend
}
