package actors

import (
	"strconv"
	"strings"
)

// Rules names the attributes and archetypes the resolver acts on. Every other
// attribute name is ignored.
type Rules struct {
	PlayerNameAttr string
	TeamAttr       string
	OwnerAttrs     []string
	BoostAttrs     []string
	RigidBodyAttr  string

	CarArchetypes []string
	CarClasses    []string
	BallPrefix    string
	TeamPrefix    string

	// BallName is written as the player of every ball row.
	BallName string
}

func DefaultRules() Rules {
	return Rules{
		PlayerNameAttr: "Engine.PlayerReplicationInfo:PlayerName",
		TeamAttr:       "Engine.PlayerReplicationInfo:Team",
		OwnerAttrs: []string{
			"Engine.Pawn:PlayerReplicationInfo",
			"TAGame.CarComponent_TA:Vehicle",
		},
		BoostAttrs: []string{
			"TAGame.CarComponent_Boost_TA:ReplicatedBoost",
			"TAGame.CarComponent_Boost_TA:ReplicatedBoostAmount",
		},
		RigidBodyAttr: "TAGame.RBActor_TA:ReplicatedRBState",

		CarArchetypes: []string{"Archetypes.Car.Car_Default"},
		CarClasses:    []string{"TAGame.Car_TA"},
		BallPrefix:    "Archetypes.Ball.",
		TeamPrefix:    "Archetypes.Teams.Team",

		BallName: "_ball_",
	}
}

type attrKind int

const (
	attrUnknown attrKind = iota
	attrPlayerName
	attrTeam
	attrOwner
	attrBoost
	attrRigidBody
)

// compiled is Rules turned into lookup tables for one pass.
type compiled struct {
	Rules
	attrs map[string]attrKind
	cars  map[string]struct{}
	carCl map[string]struct{}
}

func (r Rules) compile() *compiled {
	c := &compiled{
		Rules: r,
		attrs: map[string]attrKind{},
		cars:  map[string]struct{}{},
		carCl: map[string]struct{}{},
	}
	if r.PlayerNameAttr != "" {
		c.attrs[r.PlayerNameAttr] = attrPlayerName
	}
	if r.TeamAttr != "" {
		c.attrs[r.TeamAttr] = attrTeam
	}
	for _, n := range r.OwnerAttrs {
		c.attrs[n] = attrOwner
	}
	for _, n := range r.BoostAttrs {
		c.attrs[n] = attrBoost
	}
	if r.RigidBodyAttr != "" {
		c.attrs[r.RigidBodyAttr] = attrRigidBody
	}
	for _, a := range r.CarArchetypes {
		c.cars[a] = struct{}{}
	}
	for _, a := range r.CarClasses {
		c.carCl[a] = struct{}{}
	}
	return c
}

func (c *compiled) isCar(objectName, className string) bool {
	if _, ok := c.cars[objectName]; ok {
		return true
	}
	_, ok := c.carCl[className]
	return ok
}

func (c *compiled) isBall(objectName string) bool {
	return c.BallPrefix != "" && strings.HasPrefix(objectName, c.BallPrefix)
}

// teamIndex reads the index suffix of a team archetype ("...Team0" -> 0).
func (c *compiled) teamIndex(objectName string) (int, bool) {
	if c.TeamPrefix == "" || !strings.HasPrefix(objectName, c.TeamPrefix) {
		return 0, false
	}
	rest := objectName[len(c.TeamPrefix):]
	if rest == "" || rest[0] == '+' {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
