package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zetafin/internal/core"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads a single JSON object from the request body into v,
// rejecting unknown fields and oversized bodies.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// WindowParams is an inclusive date range taken from the query string.
type WindowParams struct {
	From core.Date
	To   core.Date
}

// ParseWindowParams reads from and to (YYYY-MM-DD). Missing bounds default
// to the current month up to today.
func ParseWindowParams(query url.Values, now time.Time) (WindowParams, error) {
	today := core.DateOf(now)
	p := WindowParams{
		From: core.NewDate(today.Year(), int(today.Month()), 1),
		To:   today,
	}
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return WindowParams{}, fmt.Errorf("from: %w", err)
		}
		p.From = d
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return WindowParams{}, fmt.Errorf("to: %w", err)
		}
		p.To = d
	}
	if p.To.Before(p.From) {
		return WindowParams{}, fmt.Errorf("%w: from must not be after to", core.ErrValidation)
	}
	return p, nil
}

// ParseAsOf reads the as_of date, defaulting to today.
func ParseAsOf(query url.Values, now time.Time) (core.Date, error) {
	v := strings.TrimSpace(query.Get("as_of"))
	if v == "" {
		return core.DateOf(now), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("as_of: %w", err)
	}
	return d, nil
}

// queryBool treats "1", "true" and "yes" as true.
func queryBool(query url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(query.Get(key))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
