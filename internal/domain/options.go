package domain

import (
	"encoding/json"
	"log"
	"net/url"
	"strings"
)

// LaunchOptions are the session options supplied by the host, typically as a
// query string whose values are JSON encoded.
type LaunchOptions struct {
	// QuestionName requests a specific named question first.
	QuestionName string
	// Filter narrows random question selection.
	Filter FilterOptions
	// Sim holds the remaining options, passed through to simulation construction.
	Sim map[string]interface{}
}

// ParseLaunchOptions parses a query string such as
// `questionName="tutorial"&filter={"lengths":[10]}`. A malformed query string
// degrades to empty options with a warning rather than failing the session.
func ParseLaunchOptions(raw string) LaunchOptions {
	opts := LaunchOptions{Sim: map[string]interface{}{}}

	values, err := parseQueryJSON(raw)
	if err != nil {
		log.Printf("WARN: query string is invalid: %v", err)
		return opts
	}

	if v, ok := values["questionName"]; ok {
		delete(values, "questionName")
		if name, ok := v.(string); ok {
			opts.QuestionName = name
		} else {
			log.Printf("WARN: ignoring non-string questionName %v", v)
		}
	}

	if v, ok := values["filter"]; ok {
		delete(values, "filter")
		data, _ := json.Marshal(v)
		if err := json.Unmarshal(data, &opts.Filter); err != nil {
			log.Printf("WARN: ignoring invalid filter options: %v", err)
			opts.Filter = FilterOptions{}
		}
	}

	opts.Sim = values
	return opts
}

func parseQueryJSON(raw string) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "?")
	if raw == "" {
		return out, nil
	}

	query, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	for key, vals := range query {
		// The last occurrence wins, as with repeated assignment.
		var v interface{}
		if err := json.Unmarshal([]byte(vals[len(vals)-1]), &v); err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}
