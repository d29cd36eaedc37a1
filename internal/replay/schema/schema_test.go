package schema

import "testing"

func TestValidate_AcceptsTree(t *testing.T) {
	raw := []byte(`{
	  "engine_version":868,
	  "licensee_version":32,
	  "patch_version":null,
	  "properties":{"TeamSize":{"int":3}},
	  "network_frames":{"frames":[
	    {"time":0.1,"delta":0.1,"replications":[
	      {"actor_id":{"value":7},"value":{"spawned":{"object_name":"Archetypes.Car.Car_Default"}}}
	    ]},
	    {"time":0.2,"replications":[]}
	  ]}
	}`)
	if err := Validate(raw); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate_RejectsBadShapes(t *testing.T) {
	cases := map[string]string{
		"frames not array":  `{"network_frames":{"frames":{}}}`,
		"time missing":      `{"network_frames":{"frames":[{"replications":[]}]}}`,
		"negative actor id": `{"network_frames":{"frames":[{"time":0,"replications":[{"actor_id":{"value":-1},"value":{}}]}]}}`,
		"string version":    `{"engine_version":"868"}`,
		"not json":          `{`,
		"properties wrong":  `{"properties":3}`,
	}
	for name, raw := range cases {
		if err := Validate([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
