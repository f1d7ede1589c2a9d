package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/prreview/loadgen/internal/performance/check"
)

// BuildChecks turns declarative checks into predicates. Schemas are compiled
// here, once per run.
func BuildChecks(configs []CheckConfig) ([]check.Check, error) {
	checks := make([]check.Check, 0, len(configs))
	for i, cc := range configs {
		c, err := BuildCheck(cc)
		if err != nil {
			return nil, errors.Wrapf(err, "checks[%d]", i)
		}
		checks = append(checks, c)
	}
	return checks, nil
}

// BuildCheck turns one declarative check into a predicate. All set conditions
// must hold.
func BuildCheck(cc CheckConfig) (check.Check, error) {
	var preds []check.Predicate
	var names []string

	if len(cc.Status) > 0 {
		preds = append(preds, check.StatusIn(cc.Status...))
		names = append(names, check.StatusName(cc.Status...))
	}

	if cc.NoError {
		preds = append(preds, check.NoError())
		names = append(names, "no error")
	}

	if cc.MaxDuration != "" {
		d, err := ParseDurationString(cc.MaxDuration)
		if err != nil {
			return check.Check{}, err
		}
		preds = append(preds, check.LatencyBelow(d))
		names = append(names, "duration < "+d.String())
	}

	if cc.JSONPath != "" {
		switch {
		case cc.Equals != nil:
			preds = append(preds, check.JSONPathEquals(cc.JSONPath, *cc.Equals))
			names = append(names, fmt.Sprintf("%s == %s", cc.JSONPath, *cc.Equals))
		case cc.Exists:
			preds = append(preds, check.JSONPathExists(cc.JSONPath))
			names = append(names, cc.JSONPath+" exists")
		default:
			return check.Check{}, errors.New("jsonPath requires equals or exists")
		}
	}

	if cc.BodyContains != "" {
		preds = append(preds, check.BodyContains(cc.BodyContains))
		names = append(names, fmt.Sprintf("body contains %q", cc.BodyContains))
	}

	if cc.Schema != "" {
		p, err := check.MatchesSchema(cc.Schema)
		if err != nil {
			return check.Check{}, err
		}
		preds = append(preds, p)
		names = append(names, "body matches schema")
	}

	if len(preds) == 0 {
		return check.Check{}, errors.New("check has no conditions")
	}

	name := cc.Name
	if name == "" {
		name = strings.Join(names, " and ")
	}

	if len(preds) == 1 {
		return check.New(name, preds[0]), nil
	}
	return check.New(name, check.All(preds...)), nil
}
