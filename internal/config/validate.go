package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed balance.cue
var balanceSchema []byte

// ValidationError lists every problem found in a balance document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid balance: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid balance: %d problems:\n  %s", len(e.Problems), strings.Join(e.Problems, "\n  "))
}

// Validate checks b against the schema, then checks identifiers and
// requirement references.
func (b *Balance) Validate() error {
	problems, err := b.schemaProblems()
	if err != nil {
		return err
	}
	problems = append(problems, b.referenceProblems()...)
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// schemaProblems unifies the JSON form of b with #Balance. Durations are
// checked as integer nanoseconds.
func (b *Balance) schemaProblems() ([]string, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(balanceSchema, cue.Filename("balance.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile balance schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Balance"))

	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode balance: %w", err)
	}
	doc := ctx.CompileBytes(data, cue.Filename("balance.json"))
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}

	err = def.Unify(doc).Validate(cue.Concrete(true))
	if err == nil {
		return nil, nil
	}
	var problems []string
	for _, e := range cueerrors.Errors(err) {
		path := strings.Join(e.Path(), ".")
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path != "" {
			msg = path + ": " + msg
		}
		problems = append(problems, msg)
	}
	return problems, nil
}

func (b *Balance) referenceProblems() []string {
	var problems []string
	checkIDs := func(kind string, ids []string) {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				problems = append(problems, fmt.Sprintf("duplicate %s id %q", kind, id))
			}
			seen[id] = true
		}
	}

	var ids []string
	for _, d := range b.Automation.AutoClickers {
		ids = append(ids, d.ID)
		if err := d.Unlock.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("auto-clicker %q unlock: %v", d.ID, err))
		}
	}
	checkIDs("auto-clicker", ids)

	ids = ids[:0]
	for _, d := range b.Automation.Facilities {
		ids = append(ids, d.ID)
		if err := d.Unlock.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("facility %q unlock: %v", d.ID, err))
		}
	}
	checkIDs("facility", ids)

	ids = ids[:0]
	for _, c := range b.Market.Conditions {
		ids = append(ids, c.ID)
	}
	checkIDs("condition", ids)

	ids = ids[:0]
	for _, a := range b.Achievements {
		ids = append(ids, a.ID)
		if err := a.Requirement.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("achievement %q requirement: %v", a.ID, err))
		}
	}
	checkIDs("achievement", ids)

	last := 1
	for _, p := range b.Phases {
		if p.Phase <= last {
			problems = append(problems, fmt.Sprintf("phase %d out of order", p.Phase))
		}
		last = max(last, p.Phase)
		if err := p.Requirement.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("phase %d requirement: %v", p.Phase, err))
		}
	}
	return problems
}
