// Package netframe turns the network frame list of a decoded replay tree into
// typed frames. Decoding is best-effort: a replication that does not have the
// expected shape is reported and skipped.
package netframe

import (
	"fmt"

	"github.com/tidwall/gjson"

	"rattlebrain/internal/replay/diag"
)

type Kind int

const (
	KindSpawn Kind = iota + 1
	KindUpdate
	KindDestroy
)

func (k Kind) String() string {
	switch k {
	case KindSpawn:
		return "spawn"
	case KindUpdate:
		return "update"
	case KindDestroy:
		return "destroy"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Frame struct {
	Index        int
	Time         float64
	Delta        float64
	Replications []Replication
}

type Replication struct {
	ActorID int
	Kind    Kind
	Spawn   *Spawn
	Updates []Attribute
}

type Spawn struct {
	ClassName  string
	ObjectName string
	Location   *Location
	Rotation   *Vector
}

// Location is in the decoder's native integer unit.
type Location struct{ X, Y, Z int }

type Vector struct{ X, Y, Z float64 }

type Quaternion struct{ X, Y, Z, W float64 }

type Attribute struct {
	Name  string
	Value Value
}

// Decode reads every frame of a frames array. Frame indices are positions in
// the array, so a skipped frame leaves a gap rather than shifting later ones.
func Decode(frames gjson.Result, sink diag.Sink) []Frame {
	if !frames.Exists() {
		sink.Emit(diag.Diagnostic{Code: diag.CodeStructAbsent, Frame: -1, Actor: -1, Detail: "no frame list"})
		return nil
	}
	if !frames.IsArray() {
		sink.Emit(diag.Diagnostic{Code: diag.CodeMalformedRecord, Frame: -1, Actor: -1, Detail: "frame list is not an array"})
		return nil
	}

	var out []Frame
	i := 0
	frames.ForEach(func(_, f gjson.Result) bool {
		idx := i
		i++
		if !f.IsObject() {
			sink.Emit(diag.Diagnostic{Code: diag.CodeMalformedRecord, Frame: idx, Actor: -1, Detail: "frame is not an object"})
			return true
		}
		out = append(out, decodeFrame(idx, f, sink))
		return true
	})
	return out
}

func decodeFrame(idx int, f gjson.Result, sink diag.Sink) Frame {
	fr := Frame{
		Index: idx,
		Time:  f.Get("time").Float(),
		Delta: f.Get("delta").Float(),
	}
	reps := f.Get("replications")
	if !reps.IsArray() {
		return fr
	}
	reps.ForEach(func(_, r gjson.Result) bool {
		rep, err := decodeReplication(idx, r, sink)
		if err != nil {
			actor := -1
			if id := r.Get("actor_id.value"); id.Type == gjson.Number {
				actor = int(id.Int())
			}
			sink.Emit(diag.Diagnostic{Code: diag.CodeMalformedRecord, Frame: idx, Actor: actor, Detail: err.Error()})
			return true
		}
		fr.Replications = append(fr.Replications, rep)
		return true
	})
	return fr
}

func decodeReplication(frame int, r gjson.Result, sink diag.Sink) (Replication, error) {
	id := r.Get("actor_id.value")
	if id.Type != gjson.Number || id.Int() < 0 {
		return Replication{}, fmt.Errorf("missing or invalid actor_id.value")
	}
	rep := Replication{ActorID: int(id.Int())}

	v := r.Get("value")
	if !v.IsObject() {
		return rep, fmt.Errorf("replication value is not an object")
	}
	if sp := v.Get("spawned"); sp.IsObject() {
		rep.Kind = KindSpawn
		rep.Spawn = decodeSpawn(sp)
		return rep, nil
	}
	if up := v.Get("updated"); up.IsArray() {
		rep.Kind = KindUpdate
		up.ForEach(func(_, a gjson.Result) bool {
			name := a.Get("name")
			if name.Type != gjson.String || name.Str == "" {
				sink.Emit(diag.Diagnostic{Code: diag.CodeMalformedRecord, Frame: frame, Actor: rep.ActorID, Detail: "attribute without a name"})
				return true
			}
			rep.Updates = append(rep.Updates, Attribute{Name: name.Str, Value: Value{raw: a.Get("value")}})
			return true
		})
		return rep, nil
	}
	if v.Get("destroyed").Exists() {
		rep.Kind = KindDestroy
		return rep, nil
	}
	return rep, fmt.Errorf("replication value has no spawned, updated or destroyed payload")
}

func decodeSpawn(sp gjson.Result) *Spawn {
	s := &Spawn{
		ClassName:  sp.Get("class_name").String(),
		ObjectName: sp.Get("object_name").String(),
	}
	if loc := sp.Get("initialization.location"); loc.IsObject() {
		l := location(loc)
		s.Location = &l
	}
	if rot := sp.Get("initialization.rotation"); rot.IsObject() {
		v := vector(rot)
		s.Rotation = &v
	}
	return s
}

func location(r gjson.Result) Location {
	return Location{X: int(r.Get("x").Int()), Y: int(r.Get("y").Int()), Z: int(r.Get("z").Int())}
}

func vector(r gjson.Result) Vector {
	return Vector{X: r.Get("x").Float(), Y: r.Get("y").Float(), Z: r.Get("z").Float()}
}
