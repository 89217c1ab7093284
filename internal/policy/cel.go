// CEL-backed policy backend (SPEC_FULL domain module #11).
// ParseCELBundleYAML and RegisterCELBundle add policy bundles — expressed as
// CEL boolean expressions over the payload — to the registry at run time;
// the veraseal commands do not call them, so no bundle is loaded from the
// configured policy bundle directory. The bundle shape mirrors
// Mindburn-Labs/helm's pkg/policyloader bundle format (rewritten here from
// JSON to YAML per SPEC_FULL's config conventions) evaluated through
// pkg/governance/policy_evaluator_cel.go's compile-and-cache CEL pattern.
// Bundle ids are looked up under the "cel:" prefix so they never collide
// with the two built-in registry entries.
package policy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/Lamont-Labs/VeraSeal/internal/seal"
)

const celPrefix = "cel:"

// CELRule is one named boolean expression evaluated against the request
// payload. A bundle is fail-closed at the first rule whose expression
// evaluates to false, or whose evaluation errors.
type CELRule struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
}

// CELBundle is a versioned, named collection of rules — one CEL-backed
// policy, addressable as policy id "cel:<name>". Version must be a valid
// semver string; RegisterCELBundle refuses to install a bundle whose
// version downgrades an already-registered bundle of the same name, so a
// policy id is never silently regressed to older, less strict rules.
type CELBundle struct {
	Name    string    `yaml:"name"`
	Version string    `yaml:"version"`
	Rules   []CELRule `yaml:"rules"`
}

type celPolicy struct {
	bundle  CELBundle
	version *semver.Version
	env     *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program
}

var (
	celRegistryMu sync.RWMutex
	celRegistry   = map[string]*celPolicy{}
)

// ParseCELBundleYAML decodes a YAML-encoded bundle, grounded on the same
// shape policyloader.Loader.LoadFile reads (JSON there, YAML here).
func ParseCELBundleYAML(data []byte) (CELBundle, error) {
	var b CELBundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return CELBundle{}, fmt.Errorf("policy: parse cel bundle: %w", err)
	}
	if b.Name == "" {
		return CELBundle{}, fmt.Errorf("policy: cel bundle missing name")
	}
	return b, nil
}

// RegisterCELBundle compiles and installs a bundle under policy id
// "cel:<name>". Compilation happens eagerly so a malformed expression is
// caught at load time, not at first evaluation. A bundle whose version is
// not a valid semver, or whose version does not exceed an already-registered
// bundle of the same name, is rejected.
func RegisterCELBundle(b CELBundle) error {
	v, err := semver.NewVersion(b.Version)
	if err != nil {
		return fmt.Errorf("policy: cel bundle %q: invalid version %q: %w", b.Name, b.Version, err)
	}

	celRegistryMu.RLock()
	existing, hadExisting := celRegistry[celPrefix+b.Name]
	celRegistryMu.RUnlock()
	if hadExisting && !v.GreaterThan(existing.version) {
		return fmt.Errorf("policy: cel bundle %q: version %s does not exceed registered version %s", b.Name, v, existing.version)
	}

	env, err := cel.NewEnv(cel.Variable("payload", cel.DynType))
	if err != nil {
		return fmt.Errorf("policy: cel environment: %w", err)
	}

	cp := &celPolicy{bundle: b, version: v, env: env, programs: make(map[string]cel.Program, len(b.Rules))}
	for _, r := range b.Rules {
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("policy: cel bundle %q rule %s: compile: %w", b.Name, r.ID, issues.Err())
		}
		prg, err := env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
		if err != nil {
			return fmt.Errorf("policy: cel bundle %q rule %s: program: %w", b.Name, r.ID, err)
		}
		cp.programs[r.ID] = prg
	}

	celRegistryMu.Lock()
	celRegistry[celPrefix+b.Name] = cp
	celRegistryMu.Unlock()
	return nil
}

func celLookup(policyID string) (Policy, bool) {
	if !strings.HasPrefix(policyID, celPrefix) {
		return nil, false
	}
	celRegistryMu.RLock()
	cp, ok := celRegistry[policyID]
	celRegistryMu.RUnlock()
	if !ok {
		return nil, false
	}
	return cp, true
}

func (p *celPolicy) ID() string { return celPrefix + p.bundle.Name }

// Evaluate runs every rule expression in declared order, fail-closed at the
// first false result or evaluation error.
func (p *celPolicy) Evaluate(payload map[string]interface{}) Verdict {
	var rules []RuleResult
	input := map[string]interface{}{"payload": payload}

	for _, r := range p.bundle.Rules {
		p.mu.Lock()
		prg := p.programs[r.ID]
		p.mu.Unlock()

		out, _, err := prg.Eval(input)
		if err != nil {
			rules = append(rules, RuleResult{
				RuleID: r.ID, RuleName: r.Name,
				Status: seal.StatusFail, Detail: "evaluation error: " + err.Error(),
			})
			return Verdict{
				Decision: seal.Reject,
				Reasons:  []string{fmt.Sprintf("rule %s (%s) failed to evaluate: %v", r.ID, r.Name, err)},
				Rules:    rules,
			}
		}

		allowed, ok := out.Value().(bool)
		if !ok || !allowed {
			rules = append(rules, RuleResult{
				RuleID: r.ID, RuleName: r.Name,
				Status: seal.StatusFail, Detail: "expression evaluated to false",
			})
			return Verdict{
				Decision: seal.Reject,
				Reasons:  []string{fmt.Sprintf("rule %s (%s) denied", r.ID, r.Name)},
				Rules:    rules,
			}
		}

		rules = append(rules, RuleResult{
			RuleID: r.ID, RuleName: r.Name,
			Status: seal.StatusPass, Detail: "expression evaluated to true",
		})
	}

	return Verdict{
		Decision: seal.Accept,
		Reasons:  []string{"all rules in bundle " + p.bundle.Name + " satisfied"},
		Rules:    rules,
	}
}
