package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finboard/internal/core"
)

const maxBodyBytes = 16 << 10

// MonthParams holds parsed year/month values from request parameters.
// Zero means "any".
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and month from the query. Missing values
// default to the month of now; "all" selects every year or month.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if strings.EqualFold(v, "all") {
			params.Year = 0
		} else {
			y, err := strconv.Atoi(v)
			if err != nil || y < 1 || y > 9999 {
				return MonthParams{}, fmt.Errorf("invalid year %q", v)
			}
			params.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if strings.EqualFold(v, "all") {
			params.Month = 0
		} else {
			m, err := strconv.Atoi(v)
			if err != nil || m < 1 || m > 12 {
				return MonthParams{}, fmt.Errorf("invalid month %q", v)
			}
			params.Month = m
		}
	}
	return params, nil
}

// ParseKind maps the kind query parameter to a collection name.
func ParseKind(query url.Values) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(query.Get("kind"))); v {
	case "", "all":
		return "all", nil
	case string(core.KindIncome), string(core.KindExpense):
		return v, nil
	default:
		return "", fmt.Errorf("invalid kind %q: must be all, income or expense", v)
	}
}

// ParseLimit reads a positive limit, falling back to def and capping at max.
func ParseLimit(query url.Values, def, max int) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// DecodeJSONBody decodes a bounded JSON request body into v.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
