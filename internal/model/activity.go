package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultVocabulary is the sector vocabulary assumed when an entry omits @vocabulary.
// "1" is the OECD DAC 5-digit purpose code list.
const DefaultVocabulary = "1"

var (
	ErrNoActivity        = errors.New("iati_json carries no iati-activity")
	ErrActivityNotObject = errors.New("iati-activity is not a JSON object")
	ErrMissingIdentifier = errors.New("document has no iati_identifier")
)

// Sector is one sector classification entry of an activity or transaction.
// Both attributes are optional in the source data; use the accessors.
type Sector struct {
	code       *string
	vocabulary *string
}

// Code returns the trimmed @code attribute, or "" when absent.
func (s Sector) Code() string {
	if s.code == nil {
		return ""
	}
	return strings.TrimSpace(*s.code)
}

// Vocabulary returns the trimmed @vocabulary attribute, or DefaultVocabulary when absent.
func (s Sector) Vocabulary() string {
	if s.vocabulary == nil {
		return DefaultVocabulary
	}
	return strings.TrimSpace(*s.vocabulary)
}

// Transaction carries the sector entries declared on a single transaction.
type Transaction struct {
	Sectors []Sector
}

// Activity is a decoded iati-activity. Raw keeps the source bytes so the
// stored copy preserves the publisher's key order.
type Activity struct {
	Raw          json.RawMessage
	Sectors      []Sector
	Transactions []Transaction
}

// AllSectors returns the activity-level sector entries followed by those of every transaction.
func (a *Activity) AllSectors() []Sector {
	n := len(a.Sectors)
	for _, t := range a.Transactions {
		n += len(t.Sectors)
	}
	all := make([]Sector, 0, n)
	all = append(all, a.Sectors...)
	for _, t := range a.Transactions {
		all = append(all, t.Sectors...)
	}
	return all
}

// Indented returns the activity JSON indented by two spaces.
func (a *Activity) Indented() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, a.Raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indent activity: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseActivity decodes the iati_json payload of a search document and
// returns its first iati-activity.
func ParseActivity(payload string) (*Activity, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, fmt.Errorf("decode iati_json: %w", err)
	}

	activities := oneOrMany(envelope["iati-activity"])
	if len(activities) == 0 {
		return nil, ErrNoActivity
	}
	return DecodeActivity(activities[0])
}

// DecodeActivity builds an Activity from a single iati-activity object.
// Malformed sector or transaction entries are skipped rather than rejected.
func DecodeActivity(raw json.RawMessage) (*Activity, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, ErrActivityNotObject
	}

	a := &Activity{
		Raw:     append(json.RawMessage(nil), raw...),
		Sectors: decodeSectors(fields["sector"]),
	}

	for _, rawTx := range oneOrMany(fields["transaction"]) {
		var tx map[string]json.RawMessage
		if err := json.Unmarshal(rawTx, &tx); err != nil || tx == nil {
			continue
		}
		a.Transactions = append(a.Transactions, Transaction{Sectors: decodeSectors(tx["sector"])})
	}

	return a, nil
}

func decodeSectors(raw json.RawMessage) []Sector {
	entries := oneOrMany(raw)
	sectors := make([]Sector, 0, len(entries))
	for _, entry := range entries {
		var attrs map[string]json.RawMessage
		if err := json.Unmarshal(entry, &attrs); err != nil || attrs == nil {
			continue
		}
		sectors = append(sectors, Sector{
			code:       scalarText(attrs["@code"]),
			vocabulary: scalarText(attrs["@vocabulary"]),
		})
	}
	return sectors
}

// oneOrMany accepts a JSON array, a single object, or null/absent.
func oneOrMany(raw json.RawMessage) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil
		}
		return items
	case '{':
		return []json.RawMessage{trimmed}
	default:
		return nil
	}
}

// scalarText returns the text of a string or number value; nil for absent,
// null or non-scalar values.
func scalarText(raw json.RawMessage) *string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	switch c := trimmed[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		return &s
	case c == '-' || (c >= '0' && c <= '9'):
		s := string(trimmed)
		return &s
	default:
		return nil
	}
}
