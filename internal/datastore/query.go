// Package datastore talks to the IATI Datastore activity search API.
package datastore

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Search parameters fixed for every harvest.
const (
	ReturnFields = "iati_identifier,iati_json"
	SortOrder    = "id ASC"
	// DefaultRows is the largest page the Datastore serves.
	DefaultRows = 1000
	// StartCursor asks Solr for the first page of a cursor walk.
	StartCursor = "*"
)

// BuildQuery ORs an activity-level and a transaction-level clause for every code.
func BuildQuery(codes []string) string {
	clauses := make([]string, 0, 2*len(codes))
	for _, code := range codes {
		clauses = append(clauses, "sector_code:"+code)
	}
	for _, code := range codes {
		clauses = append(clauses, "transaction_sector_code:"+code)
	}
	return strings.Join(clauses, " OR ")
}

// BuildSearchURL embeds the sector query into the endpoint together with the
// returned fields, the page size and the sort order. The cursor is added per
// request with PageURL.
func BuildSearchURL(endpoint string, codes []string, rows int) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse datastore URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("parse datastore URL: %q is not absolute", endpoint)
	}
	if rows <= 0 {
		rows = DefaultRows
	}

	params := u.Query()
	params.Set("q", BuildQuery(codes))
	params.Set("fl", ReturnFields)
	params.Set("rows", strconv.Itoa(rows))
	params.Set("sort", SortOrder)
	u.RawQuery = params.Encode()

	return u.String(), nil
}

// PageURL appends the cursorMark parameter to a search URL.
func PageURL(searchURL, cursor string) string {
	return searchURL + "&cursorMark=" + url.QueryEscape(cursor)
}
