// SPDX-License-Identifier: MPL-2.0

package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const (
	// StatusPassed means every check ran and passed.
	StatusPassed Status = "passed"
	// StatusFailed means at least one check failed.
	StatusFailed Status = "failed"
	// StatusSkipped means the library or runtime was not present.
	StatusSkipped Status = "skipped"
)

type (
	// Status is the outcome of a check, a type or a whole probe.
	Status string

	// CheckResult is one comparison between expectation and observation.
	CheckResult struct {
		Check   string `json:"check"`
		Status  Status `json:"status"`
		Message string `json:"message,omitempty"`
	}

	// TypeResult aggregates the checks of one TypeSurface.
	TypeResult struct {
		Name   string        `json:"name"`
		Status Status        `json:"status"`
		Reason string        `json:"reason,omitempty"`
		Checks []CheckResult `json:"checks,omitempty"`
	}

	// Result is the outcome of Probe.
	Result struct {
		Module    string       `json:"module"`
		Inspector string       `json:"inspector"`
		Status    Status       `json:"status"`
		Reason    string       `json:"reason,omitempty"`
		Types     []TypeResult `json:"types,omitempty"`
		// Observation is the raw inspector output, kept for replay.
		Observation *Observation `json:"-"`
	}
)

// Passed reports whether the probe did not fail. Skipped probes pass.
func (r *Result) Passed() bool { return r.Status != StatusFailed }

// Probe compares the library at modulePath against surface using inspector.
// A missing path, an unavailable runtime or a module that does not resolve
// produces a skipped Result with a nil error. Inspector errors of any other
// kind are returned.
func Probe(ctx context.Context, inspector Inspector, modulePath string, surface Surface) (*Result, error) {
	result := &Result{Module: modulePath, Inspector: inspector.Name()}

	if info, err := os.Stat(modulePath); err != nil || !info.IsDir() {
		return result.skip(&ModuleNotFoundError{Path: modulePath}), nil
	}

	if err := inspector.Available(ctx); err != nil {
		if errors.Is(err, ErrRuntimeUnavailable) {
			return result.skip(err), nil
		}
		return nil, err
	}

	obs, err := inspector.Inspect(ctx, modulePath, surface)
	if err != nil {
		if errors.Is(err, ErrModuleNotFound) || errors.Is(err, ErrRuntimeUnavailable) {
			return result.skip(err), nil
		}
		return nil, fmt.Errorf("failed to inspect %s: %w", modulePath, err)
	}
	result.Observation = obs

	skipped := 0
	for _, ts := range surface.Types {
		tr := evaluateType(ts, obs.Types[ts.Name])
		switch tr.Status {
		case StatusFailed:
			result.Status = StatusFailed
		case StatusSkipped:
			skipped++
		}
		result.Types = append(result.Types, tr)
	}

	switch {
	case result.Status == StatusFailed:
	case skipped == len(surface.Types):
		result.Status = StatusSkipped
		result.Reason = "no expected type could be loaded"
	default:
		result.Status = StatusPassed
	}
	return result, nil
}

func (r *Result) skip(reason error) *Result {
	r.Status = StatusSkipped
	r.Reason = reason.Error()
	return r
}

func evaluateType(ts TypeSurface, obs TypeObservation) TypeResult {
	tr := TypeResult{Name: ts.Name}

	switch {
	case !obs.Resolved:
		tr.Status = StatusSkipped
		tr.Reason = "module not found"
		return tr
	case obs.Error != "" && strings.Contains(obs.Error, "Cannot find module"):
		tr.Status = StatusSkipped
		tr.Reason = "dependencies not installed: " + obs.Error
		return tr
	case obs.Error != "":
		tr.Status = StatusFailed
		tr.Reason = "failed to load: " + obs.Error
		return tr
	}

	want := ts.Kind
	if want == "" {
		want = KindConstructible
	}
	tr.add("kind", kindCheck(want, obs.Kind))

	for _, m := range ts.Statics {
		tr.add("static "+m.Name, memberCheck(m, obs.Statics, obs.Values))
	}

	for _, d := range ts.Digests {
		tr.add("digest "+d.Member, digestCheck(d, obs.Digests))
	}

	if c := ts.Construct; c != nil {
		evaluateInstance(&tr, c, obs.Instance)
	}

	tr.Status = StatusPassed
	for _, c := range tr.Checks {
		if c.Status == StatusFailed {
			tr.Status = StatusFailed
			break
		}
	}
	return tr
}

func evaluateInstance(tr *TypeResult, c *Construction, obs *InstanceObservation) {
	name := "construct"
	if c.Factory != "" {
		name = "construct via " + c.Factory
	}

	switch {
	case obs == nil:
		tr.add(name, fail("no instance observed"))
		return
	case obs.Error != "" && isMissingDependency(obs.Error, c.Factory != ""):
		tr.add(name, CheckResult{Status: StatusSkipped, Message: "dependencies not installed: " + obs.Error})
		return
	case obs.Error != "":
		tr.add(name, fail(obs.Error))
		return
	case !obs.Created:
		tr.add(name, fail("no instance returned"))
		return
	}
	tr.add(name, pass())

	for _, m := range c.Instance {
		tr.add("instance "+m.Name, memberCheck(m, obs.Members, obs.Values))
	}
}

func (tr *TypeResult) add(check string, r CheckResult) {
	r.Check = check
	tr.Checks = append(tr.Checks, r)
}

func kindCheck(want, got Kind) CheckResult {
	if !want.Accepts(got) {
		return fail(fmt.Sprintf("expected %s, found %s", want, orAbsent(got)))
	}
	return pass()
}

func memberCheck(m Member, kinds map[string]Kind, values map[string]string) CheckResult {
	if r := kindCheck(m.Kind, kinds[m.Name]); r.Status == StatusFailed {
		return r
	}
	if m.Equals != "" {
		if got, ok := values[m.Name]; !ok || got != m.Equals {
			return fail(fmt.Sprintf("expected %q, found %q", m.Equals, got))
		}
	}
	return pass()
}

func digestCheck(d Digest, observed map[string]DigestObservation) CheckResult {
	obs, ok := observed[d.Member]
	switch {
	case !ok:
		return fail("not called")
	case obs.Error != "":
		return fail(obs.Error)
	}
	pattern := regexp.MustCompile(fmt.Sprintf(`^[0-9a-f]{%d}$`, d.Length))
	if !pattern.MatchString(obs.Output) {
		return fail(fmt.Sprintf("%s(%q) returned %q, expected %d lowercase hex characters", d.Member, d.Input, obs.Output, d.Length))
	}
	return pass()
}

func orAbsent(k Kind) Kind {
	if k == "" {
		return KindAbsent
	}
	return k
}

func pass() CheckResult { return CheckResult{Status: StatusPassed} }

func fail(msg string) CheckResult { return CheckResult{Status: StatusFailed, Message: msg} }
