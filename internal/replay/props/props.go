// Package props extracts the header properties of a decoded replay tree into
// flat records. Extraction is best-effort: a property with an unexpected
// shape is treated as absent and never fails the extraction.
package props

import (
	"github.com/tidwall/gjson"

	"rattlebrain/internal/replay/tree"
)

// Paths locates the header data inside the tree.
type Paths struct {
	EngineVersion   string
	LicenseeVersion string
	PatchVersion    string
	Properties      string
}

func DefaultPaths() Paths {
	return Paths{
		EngineVersion:   "engine_version",
		LicenseeVersion: "licensee_version",
		PatchVersion:    "patch_version",
		Properties:      "properties",
	}
}

var (
	GoalFields       = []string{"PlayerName", "PlayerTeam", "frame"}
	PlayerStatFields = []string{"Name", "Platform", "Team", "Score", "Goals", "Assists", "Saves", "Shots", "bBot"}
	HighlightFields  = []string{"BallName", "CarName", "GoalActorName", "frame"}
)

// FindScalar returns the first property named key, preferring its int
// variant and falling back to str.
func FindScalar(properties gjson.Result, key string) (Scalar, bool) {
	var (
		out   Scalar
		found bool
	)
	eachProperty(properties, func(k string, v gjson.Result) bool {
		if k != key {
			return true
		}
		v = unwrap(v)
		if r := v.Get("int"); r.Type == gjson.Number {
			out, found = IntScalar(r.Int()), true
		} else if r := v.Get("str"); r.Type == gjson.String {
			out, found = StrScalar(r.Str), true
		}
		return false
	})
	return out, found
}

// findText reads a str or name property.
func findText(properties gjson.Result, key string) *string {
	var out *string
	eachProperty(properties, func(k string, v gjson.Result) bool {
		if k != key {
			return true
		}
		if s, ok := fieldScalar(v); ok && s.Kind == KindStr {
			str := s.Str
			out = &str
		}
		return false
	})
	return out
}

func findInt(properties gjson.Result, key string) *int {
	s, ok := FindScalar(properties, key)
	if !ok || s.Kind != KindInt {
		return nil
	}
	n := int(s.Int)
	return &n
}

func rootInt(t *tree.Tree, path string) *int {
	if path == "" {
		return nil
	}
	r := t.Get(path)
	if r.Type != gjson.Number {
		return nil
	}
	n := int(r.Int())
	return &n
}

type Header struct {
	EngineVersion     *int
	LicenseeVersion   *int
	PatchVersion      *int
	TeamSize          *int
	UnfairTeamSize    *int
	Team0Score        *int
	Team1Score        *int
	PrimaryPlayerTeam *int

	ID         *string
	ReplayName *string
	MapName    *string
	MatchType  *string
	PlayerName *string
	Date       *string
	NumFrames  *int
}

func ExtractHeader(t *tree.Tree, p Paths) Header {
	list := t.Get(p.Properties)
	return Header{
		EngineVersion:     rootInt(t, p.EngineVersion),
		LicenseeVersion:   rootInt(t, p.LicenseeVersion),
		PatchVersion:      rootInt(t, p.PatchVersion),
		TeamSize:          findInt(list, "TeamSize"),
		UnfairTeamSize:    findInt(list, "UnfairTeamSize"),
		Team0Score:        findInt(list, "Team0Score"),
		Team1Score:        findInt(list, "Team1Score"),
		PrimaryPlayerTeam: findInt(list, "PrimaryPlayerTeam"),

		ID:         findText(list, "Id"),
		ReplayName: findText(list, "ReplayName"),
		MapName:    findText(list, "MapName"),
		MatchType:  findText(list, "MatchType"),
		PlayerName: findText(list, "PlayerName"),
		Date:       findText(list, "Date"),
		NumFrames:  findInt(list, "NumFrames"),
	}
}

type Field struct {
	Key   string
	Value Scalar
}

// Record is one array element flattened to its allowlisted fields, in
// allowlist order. Missing fields are not present.
type Record []Field

func (r Record) Get(key string) (Scalar, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Scalar{}, false
}

func ExtractGoals(t *tree.Tree, p Paths) []Record {
	return ExtractArray(t.Get(p.Properties), "Goals", GoalFields)
}

func ExtractPlayerStats(t *tree.Tree, p Paths) []Record {
	return ExtractArray(t.Get(p.Properties), "PlayerStats", PlayerStatFields)
}

func ExtractHighlights(t *tree.Tree, p Paths) []Record {
	return ExtractArray(t.Get(p.Properties), "HighLights", HighlightFields)
}

// ExtractArray maps every element of the array property key to a Record
// holding the allowlisted fields. The result is never nil.
func ExtractArray(properties gjson.Result, key string, fields []string) []Record {
	out := []Record{}
	var arr gjson.Result
	eachProperty(properties, func(k string, v gjson.Result) bool {
		if k != key {
			return true
		}
		arr = unwrap(v)
		return false
	})
	if a := arr.Get("array"); a.IsArray() {
		arr = a
	}
	if !arr.IsArray() {
		return out
	}

	arr.ForEach(func(_, elem gjson.Result) bool {
		if inner := elem.Get("value"); elem.Get("keys").Exists() && inner.IsObject() {
			elem = inner
		}
		values := map[string]gjson.Result{}
		eachProperty(elem, func(k string, v gjson.Result) bool {
			if _, seen := values[k]; !seen {
				values[k] = v
			}
			return true
		})
		rec := Record{}
		for _, f := range fields {
			v, ok := values[f]
			if !ok {
				continue
			}
			if s, ok := fieldScalar(v); ok {
				rec = append(rec, Field{Key: f, Value: s})
			}
		}
		out = append(out, rec)
		return true
	})
	return out
}
