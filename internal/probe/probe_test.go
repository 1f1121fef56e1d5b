// SPDX-License-Identifier: MPL-2.0

package probe

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func loadObservation(t *testing.T) *Observation {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", "observation.json"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	obs, err := ReadObservation(f)
	if err != nil {
		t.Fatal(err)
	}
	return obs
}

func TestProbe_UnresolvedPathIsSkipped(t *testing.T) {
	t.Parallel()

	inspector := &StaticInspector{Observation: loadObservation(t)}
	missing := filepath.Join(t.TempDir(), "fabric")

	result, err := Probe(context.Background(), inspector, missing, FabricSurface())
	if err != nil {
		t.Fatalf("Probe() error = %v, want nil", err)
	}
	if result.Status != StatusSkipped {
		t.Errorf("Status = %q, want skipped", result.Status)
	}
	if !result.Passed() {
		t.Error("a skipped probe must not count as failed")
	}
}

func TestProbe_RuntimeUnavailableIsSkipped(t *testing.T) {
	t.Parallel()

	inspector := &NodeInspector{Binary: "workspace-test-no-such-node"}
	result, err := Probe(context.Background(), inspector, t.TempDir(), FabricSurface())
	if err != nil {
		t.Fatalf("Probe() error = %v, want nil", err)
	}
	if result.Status != StatusSkipped || result.Reason == "" {
		t.Errorf("Probe() = %+v, want skipped with a reason", result)
	}
}

func TestProbe_StaticInspectorWithoutObservationIsSkipped(t *testing.T) {
	t.Parallel()

	result, err := Probe(context.Background(), &StaticInspector{}, t.TempDir(), FabricSurface())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusSkipped {
		t.Errorf("Status = %q, want skipped", result.Status)
	}
}

func TestProbe_FullSurfacePasses(t *testing.T) {
	t.Parallel()

	result, err := Probe(context.Background(), &StaticInspector{Observation: loadObservation(t)}, t.TempDir(), FabricSurface())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusPassed {
		t.Fatalf("Status = %q, types = %+v", result.Status, result.Types)
	}
	if len(result.Types) != 3 {
		t.Errorf("len(Types) = %d, want 3", len(result.Types))
	}
	for _, tr := range result.Types {
		if tr.Status != StatusPassed {
			t.Errorf("type %s = %q, want passed", tr.Name, tr.Status)
		}
	}
}

func TestProbe_Deviations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mutate     func(*Observation)
		typeName   string
		wantType   Status
		wantResult Status
	}{
		{
			name: "digest too short",
			mutate: func(o *Observation) {
				fabric := o.Types["Fabric"]
				fabric.Digests = map[string]DigestObservation{"sha256": {Output: "abc"}}
				o.Types["Fabric"] = fabric
			},
			typeName: "Fabric", wantType: StatusFailed, wantResult: StatusFailed,
		},
		{
			name: "digest uppercase",
			mutate: func(o *Observation) {
				fabric := o.Types["Fabric"]
				fabric.Digests = map[string]DigestObservation{"sha256": {Output: "9F86D081884C7D659A2FEAA0C55AD015A3BF4F1B2B0B822CD15D6C15B0F00A08"}}
				o.Types["Fabric"] = fabric
			},
			typeName: "Fabric", wantType: StatusFailed, wantResult: StatusFailed,
		},
		{
			name: "digest threw",
			mutate: func(o *Observation) {
				fabric := o.Types["Fabric"]
				fabric.Digests = map[string]DigestObservation{"sha256": {Error: "boom"}}
				o.Types["Fabric"] = fabric
			},
			typeName: "Fabric", wantType: StatusFailed, wantResult: StatusFailed,
		},
		{
			name: "static is not a constructor",
			mutate: func(o *Observation) {
				o.Types["Fabric"].Statics["Service"] = KindCallable
			},
			typeName: "Fabric", wantType: StatusFailed, wantResult: StatusFailed,
		},
		{
			name: "static missing",
			mutate: func(o *Observation) {
				delete(o.Types["Message"].Statics, "fromRaw")
			},
			typeName: "Message", wantType: StatusFailed, wantResult: StatusFailed,
		},
		{
			name: "instance member value differs",
			mutate: func(o *Observation) {
				o.Types["Actor"].Instance.Values["settings.type"] = "Test"
			},
			typeName: "Actor", wantType: StatusFailed, wantResult: StatusFailed,
		},
		{
			name: "type module missing",
			mutate: func(o *Observation) {
				o.Types["Actor"] = TypeObservation{Resolved: false}
			},
			typeName: "Actor", wantType: StatusSkipped, wantResult: StatusPassed,
		},
		{
			name: "type dependencies missing",
			mutate: func(o *Observation) {
				o.Types["Message"] = TypeObservation{Resolved: true, Error: "Cannot find module 'fast-json-patch'"}
			},
			typeName: "Message", wantType: StatusSkipped, wantResult: StatusPassed,
		},
		{
			name: "type load throws",
			mutate: func(o *Observation) {
				o.Types["Message"] = TypeObservation{Resolved: true, Error: "SyntaxError: Unexpected token"}
			},
			typeName: "Message", wantType: StatusFailed, wantResult: StatusFailed,
		},
		{
			name: "construction needs missing struct dependency",
			mutate: func(o *Observation) {
				o.Types["Message"].Instance.Error = "struct is not defined"
				o.Types["Message"].Instance.Created = false
			},
			typeName: "Message", wantType: StatusPassed, wantResult: StatusPassed,
		},
		{
			name: "constructor cannot destructure settings",
			mutate: func(o *Observation) {
				o.Types["Actor"].Instance.Error = "TypeError: Cannot destructure property 'type' of 'settings' as it is undefined."
				o.Types["Actor"].Instance.Created = false
			},
			typeName: "Actor", wantType: StatusFailed, wantResult: StatusFailed,
		},
		{
			name: "constructor needs missing module",
			mutate: func(o *Observation) {
				o.Types["Actor"].Instance.Error = "Cannot find module 'level'"
				o.Types["Actor"].Instance.Created = false
			},
			typeName: "Actor", wantType: StatusPassed, wantResult: StatusPassed,
		},
		{
			name: "construction throws",
			mutate: func(o *Observation) {
				o.Types["Actor"].Instance.Error = "TypeError: invalid settings"
				o.Types["Actor"].Instance.Created = false
			},
			typeName: "Actor", wantType: StatusFailed, wantResult: StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			obs := loadObservation(t)
			tt.mutate(obs)

			result, err := Probe(context.Background(), &StaticInspector{Observation: obs}, t.TempDir(), FabricSurface())
			if err != nil {
				t.Fatal(err)
			}
			if result.Status != tt.wantResult {
				t.Errorf("result Status = %q, want %q", result.Status, tt.wantResult)
			}
			for _, tr := range result.Types {
				if tr.Name == tt.typeName && tr.Status != tt.wantType {
					t.Errorf("type %s Status = %q, want %q (checks %+v)", tr.Name, tr.Status, tt.wantType, tr.Checks)
				}
			}
		})
	}
}

func TestProbe_AllTypesUnloadableIsSkipped(t *testing.T) {
	t.Parallel()

	obs := &Observation{Types: map[string]TypeObservation{
		"Fabric":  {Resolved: true, Error: "Cannot find module 'level'"},
		"Actor":   {Resolved: false},
		"Message": {Resolved: false},
	}}

	result, err := Probe(context.Background(), &StaticInspector{Observation: obs}, t.TempDir(), FabricSurface())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusSkipped {
		t.Errorf("Status = %q, want skipped", result.Status)
	}
}

type brokenInspector struct{}

func (brokenInspector) Name() string { return "broken" }

func (brokenInspector) Available(context.Context) error { return nil }

func (brokenInspector) Inspect(context.Context, string, Surface) (*Observation, error) {
	return nil, errors.New("probe script failed: exit status 1")
}

func TestProbe_InspectorErrorPropagates(t *testing.T) {
	t.Parallel()

	if _, err := Probe(context.Background(), brokenInspector{}, t.TempDir(), FabricSurface()); err == nil {
		t.Error("Probe() error = nil, want the inspector failure")
	}
}

func TestKind_Accepts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want, got Kind
		ok        bool
	}{
		{KindConstructible, KindConstructible, true},
		{KindConstructible, KindCallable, false},
		{KindCallable, KindCallable, true},
		{KindCallable, KindConstructible, true},
		{KindCallable, KindData, false},
		{KindData, KindData, true},
		{KindData, KindCallable, true},
		{KindData, KindAbsent, false},
		{KindData, "", false},
	}
	for _, tt := range tests {
		if got := tt.want.Accepts(tt.got); got != tt.ok {
			t.Errorf("%s.Accepts(%s) = %v, want %v", tt.want, tt.got, got, tt.ok)
		}
	}
}

func TestParseObservation_IgnoresLibraryOutput(t *testing.T) {
	t.Parallel()

	out := "loading fabric...\n" + observationMarker + `{"types":{"Fabric":{"resolved":true,"kind":"constructible"}}}` + "\nbye\n"
	obs, err := parseObservation([]byte(out))
	if err != nil {
		t.Fatal(err)
	}
	if obs.Types["Fabric"].Kind != KindConstructible {
		t.Errorf("Fabric kind = %q", obs.Types["Fabric"].Kind)
	}

	if _, err := parseObservation([]byte("no marker here\n")); err == nil {
		t.Error("parseObservation() without marker should fail")
	}
}

func TestNodeInspector_FabricFixture(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not available")
	}

	modulePath, err := filepath.Abs(filepath.Join("testdata", "fabric"))
	if err != nil {
		t.Fatal(err)
	}

	result, err := Probe(context.Background(), &NodeInspector{}, modulePath, FabricSurface())
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if result.Status != StatusPassed {
		t.Fatalf("Status = %q (%s), types = %+v", result.Status, result.Reason, result.Types)
	}
	digest := result.Observation.Types["Fabric"].Digests["sha256"].Output
	if digest != "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08" {
		t.Errorf("sha256(test) = %q", digest)
	}
}
