// Package filter applies filter selections to the incident dataset.
package filter

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/railwatch/railwatch/internal/domain"
)

// Engine applies selections to datasets. Compiled where-expressions are
// kept per expression text; the engine is otherwise stateless and safe for
// concurrent use.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	programs map[string]cel.Program
	maxCache int
}

// NewEngine creates a filter engine. maxPrograms bounds the number of
// distinct where-expressions kept compiled.
func NewEngine(maxPrograms int) (*Engine, error) {
	if maxPrograms <= 0 {
		maxPrograms = 256
	}

	// Create CEL environment with incident variables
	env, err := cel.NewEnv(
		cel.Variable("year", cel.IntType),
		cel.Variable("month", cel.IntType),
		cel.Variable("day", cel.IntType),
		cel.Variable("day_name", cel.StringType),
		cel.Variable("line", cel.StringType),
		cel.Variable("vehicle_id", cel.StringType),
		cel.Variable("system", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("supervisor_reviewed", cel.StringType),
		cel.Variable("service_reliability", cel.StringType),
		cel.Variable("caused_evacuation", cel.BoolType),
		// Missing measures are NaN; has_* tells them apart
		cel.Variable("delay_minutes", cel.DoubleType),
		cel.Variable("has_delay", cel.BoolType),
		cel.Variable("evacuation_percentage", cel.DoubleType),
		cel.Variable("has_evacuation_percentage", cel.BoolType),
		cel.Variable("description_length", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		programs: make(map[string]cel.Program),
		maxCache: maxPrograms,
	}, nil
}

// Apply returns the rows of ds matching every dimension of sel, in dataset
// order. The selection is expected to have passed FilterModel.Validate.
func (e *Engine) Apply(ds *domain.Dataset, sel domain.Selection) (domain.View, error) {
	lines := toSet(sel.Lines)
	systems := toSet(sel.Systems)
	categories := toSet(sel.Categories)
	vehicles := toSet(sel.Vehicles)

	var program cel.Program
	if where := strings.TrimSpace(sel.Where); where != "" {
		p, err := e.compile(where)
		if err != nil {
			return domain.View{}, err
		}
		program = p
	}

	rows := make([]domain.Incident, 0)
	for _, inc := range ds.Incidents() {
		if !sel.Years.Contains(inc.Year) {
			continue
		}
		if !lines[inc.Line] || !systems[inc.System] || !categories[inc.Category] || !vehicles[inc.VehicleID] {
			continue
		}

		if program != nil {
			ok, err := evalWhere(program, &inc)
			if err != nil {
				return domain.View{}, &domain.InvalidSelectionError{
					Dimension: domain.DimensionWhere,
					Reason:    err.Error(),
				}
			}
			if !ok {
				continue
			}
		}

		rows = append(rows, inc)
	}

	return domain.View{Rows: rows, Domains: ds.Domains()}, nil
}

// Compile validates a where-expression without applying it. An empty
// expression is valid.
func (e *Engine) Compile(where string) error {
	where = strings.TrimSpace(where)
	if where == "" {
		return nil
	}
	_, err := e.compile(where)
	return err
}

func (e *Engine) compile(where string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[where]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	ast, issues := e.env.Compile(where)
	if issues != nil && issues.Err() != nil {
		return nil, &domain.InvalidSelectionError{
			Dimension: domain.DimensionWhere,
			Reason:    issues.Err().Error(),
		}
	}

	if ast.OutputType() != cel.BoolType {
		return nil, &domain.InvalidSelectionError{
			Dimension: domain.DimensionWhere,
			Reason:    fmt.Sprintf("expression must return bool, got %s", ast.OutputType()),
		}
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	e.mu.Lock()
	if len(e.programs) >= e.maxCache {
		e.programs = make(map[string]cel.Program)
	}
	e.programs[where] = program
	e.mu.Unlock()

	return program, nil
}

func evalWhere(program cel.Program, inc *domain.Incident) (bool, error) {
	delay, hasDelay := math.NaN(), false
	if inc.DelayMinutes != nil {
		delay, hasDelay = *inc.DelayMinutes, true
	}
	evac, hasEvac := math.NaN(), false
	if inc.EvacuationPercentage != nil {
		evac, hasEvac = *inc.EvacuationPercentage, true
	}

	out, _, err := program.Eval(map[string]any{
		"year":                      int64(inc.Year),
		"month":                     int64(inc.Month),
		"day":                       int64(inc.Day),
		"day_name":                  inc.DayName,
		"line":                      inc.Line,
		"vehicle_id":                inc.VehicleID,
		"system":                    inc.System,
		"category":                  inc.Category,
		"supervisor_reviewed":       inc.SupervisorReviewed,
		"service_reliability":       inc.ServiceReliability,
		"caused_evacuation":         inc.CausedEvacuation,
		"delay_minutes":             delay,
		"has_delay":                 hasDelay,
		"evacuation_percentage":     evac,
		"has_evacuation_percentage": hasEvac,
		"description_length":        int64(inc.DescriptionLength),
	})
	if err != nil {
		return false, err
	}

	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("expression returned %s", out.Type())
	}
	return bool(b), nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
