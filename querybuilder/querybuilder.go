// Package querybuilder assembles query-string URLs for the dynamic CRUD
// data endpoint.
package querybuilder

import (
	"errors"
	"strings"
)

// DefaultBaseURL is the dynamic data endpoint used when a Builder has none.
const DefaultBaseURL = "https://flask.dfos.co/scalable_apis/dynamicapi.php"

var (
	ErrNoServer  = errors.New("querybuilder: server is required")
	ErrNoTable   = errors.New("querybuilder: table is required")
	ErrNoColumns = errors.New("querybuilder: at least one column is required")
)

// Filter is one condition. Value is emitted verbatim, so string values
// must carry their own quotes.
type Filter struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

// Complete reports whether the filter has both a type and a value.
func (f Filter) Complete() bool {
	return f.Type != "" && f.Value != ""
}

// Submission is the form a user fills in to describe a query.
type Submission struct {
	Server      string   `json:"server" yaml:"server"`
	Table       string   `json:"table" yaml:"table"`
	Columns     []string `json:"columns" yaml:"columns"`
	Filters     []Filter `json:"filters" yaml:"filters"`
	DeletedFlag bool     `json:"deletedFlag" yaml:"deleted_flag"`
}

// Validate checks the required fields.
func (s Submission) Validate() error {
	switch {
	case strings.TrimSpace(s.Server) == "":
		return ErrNoServer
	case strings.TrimSpace(s.Table) == "":
		return ErrNoTable
	}
	for _, c := range s.Columns {
		if strings.TrimSpace(c) != "" {
			return nil
		}
	}
	return ErrNoColumns
}

// Conditions renders the complete filters as {"type":value,...}. It returns
// "" when no filter is complete.
func (s Submission) Conditions() string {
	var parts []string
	for _, f := range s.Filters {
		if !f.Complete() {
			continue
		}
		parts = append(parts, `"`+f.Type+`":`+f.Value)
	}
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Builder turns submissions into URLs.
type Builder struct {
	BaseURL string
}

// Build returns the query URL for sub. Parameters are written unescaped in
// the order server, deleted_flag, table, columns, conditions, which is the
// form the endpoint parses.
func (b Builder) Build(sub Submission) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}
	base := b.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	var cols []string
	for _, c := range sub.Columns {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}

	var sb strings.Builder
	sb.WriteString(base)
	if strings.Contains(base, "?") {
		sb.WriteString("&")
	} else {
		sb.WriteString("?")
	}
	sb.WriteString("server=" + sub.Server)
	if sub.DeletedFlag {
		sb.WriteString("&deleted_flag=1")
	}
	sb.WriteString("&table=" + sub.Table)
	sb.WriteString("&columns=" + strings.Join(cols, ","))
	sb.WriteString("&conditions=" + sub.Conditions())
	return sb.String(), nil
}
