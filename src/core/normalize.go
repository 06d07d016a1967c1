package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"mxshs/oddsportal/src/domain"
)

// Shape tells which of the two feed encodings an entry arrived in.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeSequential is a JSON list ordered by outcome position.
	ShapeSequential
	// ShapeKeyed is a JSON object keyed "0", "1", "2", ...
	ShapeKeyed
)

func (s Shape) String() string {
	switch s {
	case ShapeSequential:
		return "sequential"
	case ShapeKeyed:
		return "keyed"
	}
	return "unknown"
}

// OddsEntry is one bookmaker's quote for a line. Decoding never fails: an
// entry that is neither a list nor an object of numbers stays ShapeUnknown.
type OddsEntry struct {
	Shape  Shape
	Values []float64
	Keyed  map[string]float64
}

func (e *OddsEntry) UnmarshalJSON(data []byte) error {
	*e = OddsEntry{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '[':
		var raw []flexFloat
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		e.Shape = ShapeSequential
		e.Values = make([]float64, len(raw))
		for i, v := range raw {
			e.Values[i] = float64(v)
		}
	case '{':
		var raw map[string]flexFloat
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		e.Shape = ShapeKeyed
		e.Keyed = make(map[string]float64, len(raw))
		for k, v := range raw {
			e.Keyed[k] = float64(v)
		}
	}

	return nil
}

// Outcomes lays the entry out in the declared outcome order.
func (e OddsEntry) Outcomes(names []string) ([]domain.Outcome, error) {
	out := make([]domain.Outcome, 0, len(names))

	switch e.Shape {
	case ShapeSequential:
		if len(e.Values) != len(names) {
			return nil, fmt.Errorf(
				"%w: %d values for %d outcomes", ErrUnrecognizedShape, len(e.Values), len(names),
			)
		}
		for i, name := range names {
			out = append(out, domain.Outcome{Name: name, Value: e.Values[i]})
		}
	case ShapeKeyed:
		keyed := make(map[string]float64, len(e.Keyed))
		for k, v := range e.Keyed {
			keyed[k] = v
		}
		keyed = RenameOutcomes(keyed, names)
		for _, name := range names {
			v, ok := keyed[name]
			if !ok {
				return nil, fmt.Errorf("%w: outcome %q missing", ErrUnrecognizedShape, name)
			}
			out = append(out, domain.Outcome{Name: name, Value: v})
		}
	default:
		return nil, ErrUnrecognizedShape
	}

	return out, nil
}

// RenameOutcomes moves positional keys ("0", "1", ...) onto names, in place.
// Keys already renamed are left alone, so applying it twice is a no-op.
func RenameOutcomes(odds map[string]float64, names []string) map[string]float64 {
	for i, name := range names {
		key := strconv.Itoa(i)
		if v, ok := odds[key]; ok {
			odds[name] = v
			delete(odds, key)
		}
	}
	return odds
}

// TimeEntry holds every change epoch of a bookmaker entry, flattened from
// either a list or an object of scalars/lists.
type TimeEntry struct {
	Epochs []int64
}

func (t *TimeEntry) UnmarshalJSON(data []byte) error {
	*t = TimeEntry{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	var values []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &values); err != nil {
			return nil
		}
	case '{':
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(data, &keyed); err != nil {
			return nil
		}
		for _, v := range keyed {
			values = append(values, v)
		}
	default:
		values = append(values, data)
	}

	for _, v := range values {
		v = bytes.TrimSpace(v)
		if len(v) > 0 && v[0] == '[' {
			var many []flexFloat
			if json.Unmarshal(v, &many) == nil {
				for _, m := range many {
					t.Epochs = append(t.Epochs, int64(m))
				}
			}
			continue
		}
		var one flexFloat
		if json.Unmarshal(v, &one) == nil {
			t.Epochs = append(t.Epochs, int64(one))
		}
	}

	return nil
}

// Latest converts the most recent epoch to calendar time.
func (t TimeEntry) Latest() (time.Time, bool) {
	if len(t.Epochs) == 0 {
		return time.Time{}, false
	}
	latest := t.Epochs[0]
	for _, e := range t.Epochs[1:] {
		if e > latest {
			latest = e
		}
	}
	return time.Unix(latest, 0).UTC(), true
}

type BookOdds map[string]OddsEntry

func (b *BookOdds) UnmarshalJSON(data []byte) error {
	m, err := decodeObject[OddsEntry](data)
	*b = m
	return err
}

type BookTimes map[string]TimeEntry

func (b *BookTimes) UnmarshalJSON(data []byte) error {
	m, err := decodeObject[TimeEntry](data)
	*b = m
	return err
}

// Line is one quoted variant of a market as sent by the feed.
type Line struct {
	Odds               BookOdds
	OpeningOdd         BookOdds
	ChangeTime         BookTimes
	OpeningChangeTime  BookTimes
	HandicapValue      *float64
	MixedParameterName string
}

func (l *Line) UnmarshalJSON(data []byte) error {
	var raw struct {
		Odds               BookOdds        `json:"odds"`
		OpeningOdd         BookOdds        `json:"openingOdd"`
		ChangeTime         BookTimes       `json:"changeTime"`
		OpeningChangeTime  BookTimes       `json:"openingChangeTime"`
		HandicapValue      json.RawMessage `json:"handicapValue"`
		MixedParameterName json.RawMessage `json:"mixedParameterName"`
	}
	*l = Line{}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*l = Line{
		Odds:              raw.Odds,
		OpeningOdd:        raw.OpeningOdd,
		ChangeTime:        raw.ChangeTime,
		OpeningChangeTime: raw.OpeningChangeTime,
	}

	var hv flexFloat
	if len(raw.HandicapValue) > 0 && json.Unmarshal(raw.HandicapValue, &hv) == nil {
		v := float64(hv)
		l.HandicapValue = &v
	}
	if name := bytes.TrimSpace(raw.MixedParameterName); len(name) > 0 && string(name) != "null" {
		// numeric labels are kept as written
		if err := json.Unmarshal(name, &l.MixedParameterName); err != nil {
			l.MixedParameterName = string(name)
		}
	}

	return nil
}

// Lines maps the feed's internal line identifiers to their blocks.
type Lines map[string]Line

func (ls *Lines) UnmarshalJSON(data []byte) error {
	m, err := decodeObject[Line](data)
	*ls = m
	return err
}

// Keys returns the line identifiers in sorted order.
func (ls Lines) Keys() []string {
	keys := make([]string, 0, len(ls))
	for k := range ls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type OddsDocument struct {
	D struct {
		OddsData struct {
			Back Lines `json:"back"`
		} `json:"oddsdata"`
	} `json:"d"`
}

func ParseOddsDocument(payload []byte) (Lines, error) {
	var doc OddsDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode odds document: %w", err)
	}
	if doc.D.OddsData.Back == nil {
		return Lines{}, nil
	}
	return doc.D.OddsData.Back, nil
}

type Quote struct {
	Outcomes []domain.Outcome
	Time     time.Time
	Timing   domain.Timing
}

// Normalize turns one bookmaker entry into a quote. Time is the latest
// change across all outcomes, zero when the feed sent none.
func Normalize(entry OddsEntry, times TimeEntry, names []string, timing domain.Timing) (Quote, error) {
	outcomes, err := entry.Outcomes(names)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{Outcomes: outcomes, Timing: timing}
	if t, ok := times.Latest(); ok {
		q.Time = t
	}

	return q, nil
}

// NormalizePair reads the opening and closing quotes of bookmaker on line.
func NormalizePair(line Line, bookmaker string, names []string) (opening, closing Quote, err error) {
	closingEntry, ok := line.Odds[bookmaker]
	if !ok {
		return opening, closing, fmt.Errorf("%w: bookmaker %s has no closing odds", ErrUnrecognizedShape, bookmaker)
	}
	openingEntry, ok := line.OpeningOdd[bookmaker]
	if !ok {
		return opening, closing, fmt.Errorf("%w: bookmaker %s has no opening odds", ErrUnrecognizedShape, bookmaker)
	}

	closing, err = Normalize(closingEntry, line.ChangeTime[bookmaker], names, domain.Closing)
	if err != nil {
		return opening, closing, fmt.Errorf("closing: %w", err)
	}

	opening, err = Normalize(openingEntry, line.OpeningChangeTime[bookmaker], names, domain.Opening)
	if err != nil {
		return opening, closing, fmt.Errorf("opening: %w", err)
	}

	return opening, closing, nil
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// decodeObject decodes a JSON object, treating the feed's "[]" for an empty
// collection as an empty map.
func decodeObject[T any](data []byte) (map[string]T, error) {
	data = bytes.TrimSpace(data)
	out := map[string]T{}
	if len(data) == 0 || data[0] != '{' {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
