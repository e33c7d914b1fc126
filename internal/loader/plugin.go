package loader

import (
	"context"
	"errors"
	"fmt"
	"plugin"
	"reflect"

	"github.com/roach88/tagcheck/internal/agent"
	"github.com/roach88/tagcheck/pkg/studentagent"
)

var (
	studentAgentType = reflect.TypeOf((*studentagent.Agent)(nil)).Elem()
	errorType        = reflect.TypeOf((*error)(nil)).Elem()
)

func loadPlugin(path, abs string) (*Loaded, error) {
	p, err := plugin.Open(abs)
	if err != nil {
		return nil, loadErr(ErrCodeUnloadable, path, err, "cannot open plugin %s", path)
	}
	sym, err := p.Lookup(studentagent.ExportName)
	if err != nil {
		return nil, loadErr(ErrCodeMissingExport, path, err, "%s does not export %s", path, studentagent.ExportName)
	}
	factory, err := AdaptConstructor(sym)
	if err != nil {
		return nil, loadErr(ErrCodeBadSymbol, path, err, "%s in %s has the wrong shape", studentagent.ExportName, path)
	}
	return &Loaded{Path: abs, Kind: KindPlugin, Factory: factory}, nil
}

// AdaptConstructor turns a StudentAgent symbol into a Factory. The symbol
// must be a function (or a pointer to one) taking the role as a string and
// returning T or (T, error), where T has the method
// GetAction([]float64, string) ([]float64, error).
func AdaptConstructor(sym any) (agent.Factory, error) {
	fn := reflect.ValueOf(sym)
	if fn.Kind() == reflect.Pointer && !fn.IsNil() && fn.Elem().Kind() == reflect.Func {
		fn = fn.Elem()
	}
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("got %T, want a function", sym)
	}
	if fn.IsNil() {
		return nil, errors.New("function is nil")
	}

	t := fn.Type()
	if t.IsVariadic() || t.NumIn() != 1 || t.In(0).Kind() != reflect.String {
		return nil, fmt.Errorf("%s must take a single string role", t)
	}
	switch {
	case t.NumOut() == 1:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("%s must return T or (T, error)", t)
	}
	if !t.Out(0).Implements(studentAgentType) {
		return nil, fmt.Errorf("%s does not have method GetAction([]float64, string) ([]float64, error)", t.Out(0))
	}

	return func(ctx context.Context, role agent.Role) (a agent.Agent, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in %s(%q): %v", studentagent.ExportName, role, r)
			}
		}()

		out := fn.Call([]reflect.Value{reflect.ValueOf(string(role)).Convert(t.In(0))})
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		if isNil(out[0]) {
			return nil, fmt.Errorf("%s(%q) returned nil", studentagent.ExportName, role)
		}
		return &inProcessAgent{impl: out[0].Interface().(studentagent.Agent)}, nil
	}, nil
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// inProcessAgent runs a plugin agent in the harness's own process. A running
// GetAction cannot be interrupted; cancellation is only observed between
// calls.
type inProcessAgent struct {
	impl studentagent.Agent
}

func (a *inProcessAgent) GetAction(ctx context.Context, observation []float64, participantID string) (action []float64, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in GetAction: %v", r)
		}
	}()
	return a.impl.GetAction(observation, participantID)
}
