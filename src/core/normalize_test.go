package core

import (
	"encoding/json"
	"testing"
	"time"

	"mxshs/oddsportal/src/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOddsEntryShapes(t *testing.T) {
	testCases := []struct {
		name   string
		raw    string
		shape  Shape
		values []float64
		keyed  map[string]float64
	}{
		{
			name:   "list",
			raw:    `[1.5, 3.4, 5.0]`,
			shape:  ShapeSequential,
			values: []float64{1.5, 3.4, 5.0},
		},
		{
			name:  "object with numeric strings",
			raw:   `{"0": 1.5, "1": "3.4", "2": 5}`,
			shape: ShapeKeyed,
			keyed: map[string]float64{"0": 1.5, "1": 3.4, "2": 5},
		},
		{
			name:  "scalar",
			raw:   `"x"`,
			shape: ShapeUnknown,
		},
		{
			name:  "null",
			raw:   `null`,
			shape: ShapeUnknown,
		},
		{
			name:  "list of garbage",
			raw:   `["a", "b"]`,
			shape: ShapeUnknown,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var e OddsEntry
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &e))
			assert.Equal(t, tc.shape, e.Shape)
			assert.Equal(t, tc.values, e.Values)
			assert.Equal(t, tc.keyed, e.Keyed)
		})
	}
}

func TestNormalizeSequential(t *testing.T) {
	var entry OddsEntry
	require.NoError(t, json.Unmarshal([]byte(`[2.1, 3.3, 3.6]`), &entry))

	var times TimeEntry
	require.NoError(t, json.Unmarshal([]byte(`[1618300000, 1618320499, 1618310000]`), &times))

	q, err := Normalize(entry, times, MatchResultOutcomes, domain.Closing)
	require.NoError(t, err)

	assert.Equal(t, []domain.Outcome{
		{Name: "home", Value: 2.1},
		{Name: "draw", Value: 3.3},
		{Name: "away", Value: 3.6},
	}, q.Outcomes)
	assert.Equal(t, time.Unix(1618320499, 0).UTC(), q.Time)
	assert.Equal(t, domain.Closing, q.Timing)
}

func TestNormalizeKeyed(t *testing.T) {
	var entry OddsEntry
	require.NoError(t, json.Unmarshal([]byte(`{"1": 3.3, "0": 2.1, "2": 3.6}`), &entry))

	var times TimeEntry
	require.NoError(t, json.Unmarshal([]byte(`{"0": 100, "1": 300, "2": 200}`), &times))

	q, err := Normalize(entry, times, MatchResultOutcomes, domain.Opening)
	require.NoError(t, err)

	assert.Equal(t, []domain.Outcome{
		{Name: "home", Value: 2.1},
		{Name: "draw", Value: 3.3},
		{Name: "away", Value: 3.6},
	}, q.Outcomes)
	assert.Equal(t, time.Unix(300, 0).UTC(), q.Time)

	// the entry itself is not renamed
	assert.Contains(t, entry.Keyed, "0")
}

func TestNormalizeErrors(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{"too few values", `[2.1, 3.3]`},
		{"too many values", `[2.1, 3.3, 3.6, 1.0]`},
		{"keyed outcome missing", `{"0": 2.1, "2": 3.6}`},
		{"unknown shape", `"2.1"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var entry OddsEntry
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &entry))

			_, err := Normalize(entry, TimeEntry{}, MatchResultOutcomes, domain.Closing)
			require.ErrorIs(t, err, ErrUnrecognizedShape)
		})
	}
}

func TestNormalizeWithoutTimes(t *testing.T) {
	entry := OddsEntry{Shape: ShapeSequential, Values: []float64{1.9, 1.9}}

	q, err := Normalize(entry, TimeEntry{}, TotalGoalsOutcomes, domain.Closing)
	require.NoError(t, err)
	assert.True(t, q.Time.IsZero())
}

func TestRenameOutcomes(t *testing.T) {
	odds := map[string]float64{"0": 2.1, "1": 3.3, "2": 3.6}

	renamed := RenameOutcomes(odds, MatchResultOutcomes)
	expected := map[string]float64{"home": 2.1, "draw": 3.3, "away": 3.6}
	assert.Equal(t, expected, renamed)

	again := RenameOutcomes(renamed, MatchResultOutcomes)
	assert.Equal(t, expected, again)
}

func TestRenameOutcomesKeepsUnknownKeys(t *testing.T) {
	odds := map[string]float64{"0": 1.8, "1": 2.0, "5": 9.9}

	renamed := RenameOutcomes(odds, HandicapOutcomes)
	assert.Equal(t, map[string]float64{"home": 1.8, "away": 2.0, "5": 9.9}, renamed)
}

func TestTimeEntryLatest(t *testing.T) {
	testCases := []struct {
		name   string
		raw    string
		latest int64
		ok     bool
	}{
		{"list", `[1, 5, 3]`, 5, true},
		{"object", `{"0": 1, "1": 7}`, 7, true},
		{"object of lists", `{"0": [1, 9], "1": 4}`, 9, true},
		{"string epochs", `["10", "20"]`, 20, true},
		{"scalar", `12`, 12, true},
		{"empty list", `[]`, 0, false},
		{"garbage", `"abc"`, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var entry TimeEntry
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &entry))

			latest, ok := entry.Latest()
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, time.Unix(tc.latest, 0).UTC(), latest)
			}
		})
	}
}

func TestParseOddsDocument(t *testing.T) {
	payload := []byte(`{
		"s": 1,
		"d": {
			"oddsdata": {
				"back": {
					"E-5-2-0--0.25-0": {
						"handicapValue": "-0.25",
						"odds": {"18": [1.95, 1.85]},
						"openingOdd": [],
						"changeTime": {"18": [1618320000, 1618320400]},
						"openingChangeTime": []
					},
					"E-8-2-0-0-1": {
						"mixedParameterName": "1:0",
						"odds": {"16": {"0": 7.5}}
					},
					"broken": []
				}
			}
		}
	}`)

	lines, err := ParseOddsDocument(payload)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, []string{"E-5-2-0--0.25-0", "E-8-2-0-0-1", "broken"}, lines.Keys())

	ahc := lines["E-5-2-0--0.25-0"]
	require.NotNil(t, ahc.HandicapValue)
	assert.Equal(t, -0.25, *ahc.HandicapValue)
	assert.Empty(t, ahc.OpeningOdd)
	assert.Empty(t, ahc.OpeningChangeTime)
	assert.Equal(t, ShapeSequential, ahc.Odds["18"].Shape)
	assert.Equal(t, []int64{1618320000, 1618320400}, ahc.ChangeTime["18"].Epochs)

	cs := lines["E-8-2-0-0-1"]
	assert.Equal(t, "1:0", cs.MixedParameterName)
	assert.Nil(t, cs.HandicapValue)
	assert.Equal(t, ShapeKeyed, cs.Odds["16"].Shape)

	assert.Empty(t, lines["broken"].Odds)
}

func TestLineLabel(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected string
	}{
		{"plain", `{"mixedParameterName": "2:1"}`, "2:1"},
		{"escaped", `{"mixedParameterName": "2\u003a1"}`, "2:1"},
		{"number", `{"mixedParameterName": 3}`, "3"},
		{"null", `{"mixedParameterName": null}`, ""},
		{"missing", `{}`, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var line Line
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &line))
			assert.Equal(t, tc.expected, line.MixedParameterName)
		})
	}
}

func TestParseOddsDocumentEmpty(t *testing.T) {
	lines, err := ParseOddsDocument([]byte(`{"d": {"oddsdata": {"back": []}}}`))
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = ParseOddsDocument([]byte(`{"d": {}}`))
	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)

	_, err = ParseOddsDocument([]byte(`{"d": `))
	require.Error(t, err)
}

func TestNormalizePair(t *testing.T) {
	var line Line
	require.NoError(t, json.Unmarshal([]byte(`{
		"odds": {"18": [2.0, 3.4, 3.8]},
		"openingOdd": {"18": {"0": 2.2, "1": 3.3, "2": 3.5}},
		"changeTime": {"18": [300, 400, 350]},
		"openingChangeTime": {"18": {"0": 100, "1": 120, "2": 110}}
	}`), &line))

	opening, closing, err := NormalizePair(line, "18", MatchResultOutcomes)
	require.NoError(t, err)

	assert.Equal(t, domain.Opening, opening.Timing)
	assert.Equal(t, 2.2, opening.Outcomes[0].Value)
	assert.Equal(t, time.Unix(120, 0).UTC(), opening.Time)

	assert.Equal(t, domain.Closing, closing.Timing)
	assert.Equal(t, 3.8, closing.Outcomes[2].Value)
	assert.Equal(t, time.Unix(400, 0).UTC(), closing.Time)

	_, _, err = NormalizePair(line, "99", MatchResultOutcomes)
	require.ErrorIs(t, err, ErrUnrecognizedShape)
}
