package netframe

import "github.com/tidwall/gjson"

// Value is an attribute payload as the decoder produced it. Only the handful
// of shapes the resolver needs have typed accessors; everything else stays
// opaque.
type Value struct {
	raw gjson.Result
}

// RawValue builds a Value from a JSON literal.
func RawValue(json string) Value { return Value{raw: gjson.Parse(json)} }

func (v Value) Raw() string { return v.raw.Raw }

func (v Value) Exists() bool { return v.raw.Exists() }

// Int reads flagged_int.int, int, or a numeric byte.
func (v Value) Int() (int, bool) {
	for _, p := range []string{"flagged_int.int", "int", "byte"} {
		if r := v.raw.Get(p); r.Type == gjson.Number {
			return int(r.Int()), true
		}
	}
	return 0, false
}

// String reads string or str.
func (v Value) String() (string, bool) {
	for _, p := range []string{"string", "str"} {
		if r := v.raw.Get(p); r.Type == gjson.String {
			return r.Str, true
		}
	}
	return "", false
}

// Boost reads the replicated boost amount in any of the decoder's encodings.
func (v Value) Boost() (int, bool) {
	for _, p := range []string{"boost.boost_amount", "replicated_boost.boost_amount", "byte", "int"} {
		if r := v.raw.Get(p); r.Type == gjson.Number {
			return int(r.Int()), true
		}
	}
	return 0, false
}

type RigidBody struct {
	Sleeping        bool
	Location        Location
	Rotation        Quaternion
	LinearVelocity  Vector
	AngularVelocity Vector
}

// RigidBody reads rigid_body_state. Missing sub-objects decode as zero.
func (v Value) RigidBody() (RigidBody, bool) {
	rb := v.raw.Get("rigid_body_state")
	if !rb.IsObject() {
		return RigidBody{}, false
	}
	q := rb.Get("rotation.quaternion")
	return RigidBody{
		Sleeping: rb.Get("sleeping").Bool(),
		Location: location(rb.Get("location")),
		Rotation: Quaternion{
			X: q.Get("x").Float(),
			Y: q.Get("y").Float(),
			Z: q.Get("z").Float(),
			W: q.Get("w").Float(),
		},
		LinearVelocity:  vector(rb.Get("linear_velocity")),
		AngularVelocity: vector(rb.Get("angular_velocity")),
	}, true
}
