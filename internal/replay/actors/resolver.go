// Package actors reconstructs per-car and ball state from replication frames.
//
// Actor IDs are reused within a replay, so every binding the resolver keeps is
// scoped to the current spawn lifetime of its actor: a Spawn or Destroy for an
// ID drops everything learned about that ID, including owner bindings that
// point at it.
package actors

import (
	"fmt"

	"rattlebrain/internal/replay/diag"
	"rattlebrain/internal/replay/netframe"
)

type RowSource int

const (
	SourceSpawn RowSource = iota + 1
	SourceCar
	SourceBall
)

func (s RowSource) String() string {
	switch s {
	case SourceSpawn:
		return "spawn"
	case SourceCar:
		return "car"
	case SourceBall:
		return "ball"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Row is one emitted sample. Team, Player and Boost are nil when unresolved;
// ball rows carry the ball sentinel as Player and never a team or boost.
type Row struct {
	Frame  int
	Time   float64
	Actor  int
	Source RowSource

	Team   *int
	Player *string
	Boost  *int

	Location        [3]int
	Rotation        [4]float64
	AngularVelocity [3]float64
	LinearVelocity  [3]float64
}

type Options struct {
	// Rules defaults to DefaultRules when left zero.
	Rules Rules
	Sink  diag.Sink
}

type lifetime struct {
	objectName string
	className  string
	car        bool
}

// state is owned by a single Resolve call.
type state struct {
	rules *compiled
	sink  diag.Sink

	playerNameByActor map[int]string
	teamByActor       map[int]int
	carOwnerByActor   map[int]int
	boostByActor      map[int]int
	ballActor         int
	hasBall           bool

	lifetimes        map[int]lifetime
	teamIndexByActor map[int]int
	reported         map[string]struct{}

	rows []Row
}

// Resolve folds frames, in order, into rows. Frames are not modified and no
// state survives the call, so resolving the same frames twice yields the same
// rows.
func Resolve(frames []netframe.Frame, opts Options) []Row {
	rules := opts.Rules
	if rules.isZero() {
		rules = DefaultRules()
	}
	s := &state{
		rules:             rules.compile(),
		sink:              opts.Sink,
		playerNameByActor: map[int]string{},
		teamByActor:       map[int]int{},
		carOwnerByActor:   map[int]int{},
		boostByActor:      map[int]int{},
		lifetimes:         map[int]lifetime{},
		teamIndexByActor:  map[int]int{},
		reported:          map[string]struct{}{},
	}
	for i := range frames {
		s.bind(&frames[i])
		s.emit(&frames[i])
	}
	if s.rows == nil {
		return []Row{}
	}
	return s.rows
}

func (r Rules) isZero() bool {
	return r.PlayerNameAttr == "" && r.TeamAttr == "" && r.RigidBodyAttr == "" &&
		len(r.OwnerAttrs) == 0 && len(r.BoostAttrs) == 0 &&
		len(r.CarArchetypes) == 0 && len(r.CarClasses) == 0 && r.BallPrefix == ""
}

// bind applies lifetimes first and attribute bindings second, so that emit
// sees every binding of the frame regardless of record order.
func (s *state) bind(f *netframe.Frame) {
	for i := range f.Replications {
		rep := &f.Replications[i]
		switch rep.Kind {
		case netframe.KindSpawn:
			s.reset(rep.ActorID)
			if rep.Spawn == nil {
				continue
			}
			lt := lifetime{
				objectName: rep.Spawn.ObjectName,
				className:  rep.Spawn.ClassName,
				car:        s.rules.isCar(rep.Spawn.ObjectName, rep.Spawn.ClassName),
			}
			s.lifetimes[rep.ActorID] = lt
			if s.rules.isBall(lt.objectName) {
				s.ballActor, s.hasBall = rep.ActorID, true
			}
			if idx, ok := s.rules.teamIndex(lt.objectName); ok {
				s.teamIndexByActor[rep.ActorID] = idx
			}
		case netframe.KindDestroy:
			s.reset(rep.ActorID)
		}
	}
	for i := range f.Replications {
		rep := &f.Replications[i]
		if rep.Kind != netframe.KindUpdate {
			continue
		}
		for _, a := range rep.Updates {
			s.apply(f.Index, rep.ActorID, a)
		}
	}
}

func (s *state) apply(frame, actor int, a netframe.Attribute) {
	switch s.rules.attrs[a.Name] {
	case attrPlayerName:
		if name, ok := a.Value.String(); ok {
			s.playerNameByActor[actor] = name
			return
		}
	case attrTeam:
		if team, ok := a.Value.Int(); ok {
			s.teamByActor[actor] = team
			return
		}
	case attrOwner:
		owner, ok := a.Value.Int()
		if ok {
			// Zero or negative means "no owner yet".
			if owner > 0 {
				s.carOwnerByActor[actor] = owner
			}
			return
		}
	case attrBoost:
		if boost, ok := a.Value.Boost(); ok {
			s.boostByActor[actor] = boost
			return
		}
	case attrRigidBody:
		return
	default:
		if _, seen := s.reported[a.Name]; !seen {
			s.reported[a.Name] = struct{}{}
			s.sink.Emit(diag.Diagnostic{Code: diag.CodeUnknownAttribute, Frame: frame, Actor: actor, Detail: a.Name})
		}
		return
	}
	s.sink.Emit(diag.Diagnostic{Code: diag.CodeMalformedRecord, Frame: frame, Actor: actor,
		Detail: fmt.Sprintf("%s: unexpected value %s", a.Name, a.Value.Raw())})
}

// reset ends the current lifetime of id.
func (s *state) reset(id int) {
	delete(s.playerNameByActor, id)
	delete(s.teamByActor, id)
	delete(s.carOwnerByActor, id)
	delete(s.boostByActor, id)
	delete(s.lifetimes, id)
	delete(s.teamIndexByActor, id)
	if s.hasBall && s.ballActor == id {
		s.hasBall = false
	}
	for car, owner := range s.carOwnerByActor {
		if owner == id {
			delete(s.carOwnerByActor, car)
		}
	}
}

func (s *state) emit(f *netframe.Frame) {
	for i := range f.Replications {
		rep := &f.Replications[i]
		switch rep.Kind {
		case netframe.KindSpawn:
			if rep.Spawn == nil || !s.lifetimes[rep.ActorID].car {
				continue
			}
			owner, ok := s.carOwnerByActor[rep.ActorID]
			if !ok {
				s.unbound(f.Index, rep.ActorID, "car spawn without owner")
				continue
			}
			row := s.carRow(f, rep.ActorID, owner, SourceSpawn)
			if l := rep.Spawn.Location; l != nil {
				row.Location = [3]int{l.X, l.Y, l.Z}
			}
			if r := rep.Spawn.Rotation; r != nil {
				row.Rotation = [4]float64{r.X, r.Y, r.Z, 0}
			}
			s.rows = append(s.rows, row)
		case netframe.KindUpdate:
			for _, a := range rep.Updates {
				if s.rules.attrs[a.Name] != attrRigidBody {
					continue
				}
				s.emitRigidBody(f, rep.ActorID, a)
			}
		}
	}
}

func (s *state) emitRigidBody(f *netframe.Frame, actor int, a netframe.Attribute) {
	rb, ok := a.Value.RigidBody()
	if !ok {
		s.sink.Emit(diag.Diagnostic{Code: diag.CodeMalformedRecord, Frame: f.Index, Actor: actor,
			Detail: a.Name + ": no rigid_body_state"})
		return
	}

	var row Row
	switch {
	case s.hasBall && actor == s.ballActor:
		name := s.rules.BallName
		row = Row{Frame: f.Index, Time: f.Time, Actor: actor, Source: SourceBall, Player: &name}
	case s.lifetimes[actor].car:
		owner, ok := s.carOwnerByActor[actor]
		if !ok {
			s.unbound(f.Index, actor, "rigid body update for car without owner")
			return
		}
		row = s.carRow(f, actor, owner, SourceCar)
	default:
		s.unbound(f.Index, actor, "rigid body update for untracked actor")
		return
	}

	row.Location = [3]int{rb.Location.X, rb.Location.Y, rb.Location.Z}
	row.Rotation = [4]float64{rb.Rotation.X, rb.Rotation.Y, rb.Rotation.Z, rb.Rotation.W}
	row.AngularVelocity = [3]float64{rb.AngularVelocity.X, rb.AngularVelocity.Y, rb.AngularVelocity.Z}
	row.LinearVelocity = [3]float64{rb.LinearVelocity.X, rb.LinearVelocity.Y, rb.LinearVelocity.Z}
	s.rows = append(s.rows, row)
}

// carRow resolves name and team through the owner and boost through the car
// or its boost component.
func (s *state) carRow(f *netframe.Frame, car, owner int, src RowSource) Row {
	row := Row{Frame: f.Index, Time: f.Time, Actor: car, Source: src}
	if name, ok := s.playerNameByActor[owner]; ok {
		row.Player = &name
	}
	if team, ok := s.teamByActor[owner]; ok {
		if idx, ok := s.teamIndexByActor[team]; ok {
			team = idx
		}
		row.Team = &team
	}
	if boost, ok := s.boostOf(car); ok {
		row.Boost = &boost
	}
	return row
}

func (s *state) boostOf(car int) (int, bool) {
	if b, ok := s.boostByActor[car]; ok {
		return b, true
	}
	best, found := 0, false
	for comp := range s.boostByActor {
		if o, ok := s.carOwnerByActor[comp]; !ok || o != car {
			continue
		}
		if !found || comp < best {
			best, found = comp, true
		}
	}
	if !found {
		return 0, false
	}
	return s.boostByActor[best], true
}

func (s *state) unbound(frame, actor int, detail string) {
	s.sink.Emit(diag.Diagnostic{Code: diag.CodeUnbound, Frame: frame, Actor: actor, Detail: detail})
}
