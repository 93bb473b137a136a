package planner

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/joeycumines/go-htn/internal/domain"
	"github.com/joeycumines/go-htn/internal/worldstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addFact(pred, value string) domain.Operator {
	return func(s *worldstate.State, _ ...any) *worldstate.State {
		s.AddFact(pred, value)
		return s
	}
}

func fail(*worldstate.State, ...any) *worldstate.State { return nil }

func TestSolve_EmptyGoal(t *testing.T) {
	t.Parallel()

	p := New(domain.NewRegistry(), WithLogger(quietLogger()))
	plan, err := p.Solve(worldstate.New(), nil)
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.Empty(t, plan)
}

func TestSolve_NilState(t *testing.T) {
	t.Parallel()

	_, err := New(domain.NewRegistry()).Solve(nil, nil)
	require.Error(t, err)
}

func TestSolve_OperatorsOnly(t *testing.T) {
	t.Parallel()

	reg := domain.NewRegistry()
	require.NoError(t, reg.RegisterOperator("A", addFact("done", "a")))
	require.NoError(t, reg.RegisterOperator("B", addFact("done", "b")))

	p := New(reg, WithLogger(quietLogger()))
	plan, err := p.Solve(worldstate.New(), []domain.Task{domain.NewTask("A"), domain.NewTask("B", 1)})
	require.NoError(t, err)
	require.Equal(t, []string{"(A)", "(B, 1)"}, plan.Strings())
}

func TestSolve_NoPlanWhenEveryMethodFails(t *testing.T) {
	t.Parallel()

	reg := domain.NewRegistry()
	nope := func(*worldstate.State, ...any) []domain.Task { return nil }
	require.NoError(t, reg.RegisterMethods("T1", nope, nope))
	require.NoError(t, reg.RegisterMethods("T2", nope))

	p := New(reg, WithLogger(quietLogger()))
	plan, err := p.Solve(worldstate.New(), []domain.Task{domain.NewTask("T1"), domain.NewTask("T2")})
	require.ErrorIs(t, err, ErrNoPlan)
	require.NotErrorIs(t, err, ErrDepthExceeded)
	require.Nil(t, plan)
}

func TestSolve_UnknownTask(t *testing.T) {
	t.Parallel()

	p := New(domain.NewRegistry(), WithLogger(quietLogger()))
	_, err := p.Solve(worldstate.New(), []domain.Task{domain.NewTask("Nope")})
	require.ErrorIs(t, err, ErrNoPlan)
}

func TestSolve_DepthBound(t *testing.T) {
	t.Parallel()

	reg := domain.NewRegistry()
	calls := 0
	forever := func(*worldstate.State, ...any) []domain.Task {
		calls++
		return []domain.Task{domain.NewTask("Loop")}
	}
	require.NoError(t, reg.RegisterMethods("Loop", forever, forever))

	var logs bytes.Buffer
	p := New(reg, WithMaxDepth(10), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	plan, err := p.Solve(worldstate.New(), []domain.Task{domain.NewTask("Loop")})
	require.ErrorIs(t, err, ErrNoPlan)
	require.ErrorIs(t, err, ErrDepthExceeded)
	require.Nil(t, plan)
	require.Equal(t, 10, calls, "the bound is fatal to the search: alternatives are not retried")
	require.Contains(t, logs.String(), "depth bound")
}

func TestSolve_DefaultMaxDepth(t *testing.T) {
	t.Parallel()

	p := New(domain.NewRegistry())
	require.Equal(t, DefaultMaxDepth, p.MaxDepth())
	require.Equal(t, 30, DefaultMaxDepth)
	require.Equal(t, 5, New(domain.NewRegistry(), WithMaxDepth(5)).MaxDepth())
	require.Equal(t, DefaultMaxDepth, New(domain.NewRegistry(), WithMaxDepth(0)).MaxDepth())
}

func TestSolve_MethodOrderFirstSuccessWins(t *testing.T) {
	t.Parallel()

	reg := domain.NewRegistry()
	require.NoError(t, reg.RegisterOperator("A", addFact("x", "a")))
	require.NoError(t, reg.RegisterOperator("B", addFact("x", "b")))
	require.NoError(t, reg.RegisterMethods("Pick",
		func(*worldstate.State, ...any) []domain.Task { return []domain.Task{domain.NewTask("A")} },
		func(*worldstate.State, ...any) []domain.Task { return []domain.Task{domain.NewTask("B")} },
	))

	plan, err := New(reg, WithLogger(quietLogger())).Solve(worldstate.New(), []domain.Task{domain.NewTask("Pick")})
	require.NoError(t, err)
	require.Equal(t, []string{"(A)"}, plan.Strings())
}

// A method whose decomposition fails part way must leave no trace in the plan
// produced by the next alternative.
func TestSolve_AlternativesStartFromPristinePrefix(t *testing.T) {
	t.Parallel()

	reg := domain.NewRegistry()
	require.NoError(t, reg.RegisterOperator("Step", addFact("steps", "x")))
	require.NoError(t, reg.RegisterOperator("Fail", fail))
	require.NoError(t, reg.RegisterOperator("Other", addFact("other", "x")))
	require.NoError(t, reg.RegisterMethods("Goal",
		func(*worldstate.State, ...any) []domain.Task {
			return []domain.Task{domain.NewTask("Step"), domain.NewTask("Step"), domain.NewTask("Fail")}
		},
		func(*worldstate.State, ...any) []domain.Task {
			return []domain.Task{domain.NewTask("Other")}
		},
	))

	plan, err := New(reg, WithLogger(quietLogger())).Solve(worldstate.New(),
		[]domain.Task{domain.NewTask("Step"), domain.NewTask("Goal")})
	require.NoError(t, err)
	require.Equal(t, []string{"(Step)", "(Other)"}, plan.Strings())
}

// Operators may mutate the state they are given; the planner must hand each
// one a private copy.
func TestSolve_OperatorsCannotCorruptSearchState(t *testing.T) {
	t.Parallel()

	reg := domain.NewRegistry()
	require.NoError(t, reg.RegisterOperator("Vandal", func(s *worldstate.State, _ ...any) *worldstate.State {
		s.RemoveFact("key", "present")
		s.AddFact("garbage", "x")
		return nil
	}))
	require.NoError(t, reg.RegisterOperator("NeedsKey", func(s *worldstate.State, _ ...any) *worldstate.State {
		if !s.HasFactValue("key", "present") || s.HasFact("garbage") {
			return nil
		}
		return s
	}))
	require.NoError(t, reg.RegisterMethods("Goal",
		func(*worldstate.State, ...any) []domain.Task { return []domain.Task{domain.NewTask("Vandal")} },
		func(*worldstate.State, ...any) []domain.Task { return []domain.Task{domain.NewTask("NeedsKey")} },
	))
	require.NoError(t, reg.RegisterMethods("Mutator", func(s *worldstate.State, _ ...any) []domain.Task {
		s.ClearFact("key")
		return nil
	}))

	initial := worldstate.New()
	initial.AddFact("key", "present")
	before := initial.String()

	p := New(reg, WithLogger(quietLogger()))
	plan, err := p.Solve(initial, []domain.Task{domain.NewTask("Goal")})
	require.NoError(t, err)
	require.Equal(t, []string{"(NeedsKey)"}, plan.Strings())
	require.Equal(t, before, initial.String())

	_, err = p.Solve(initial, []domain.Task{domain.NewTask("Mutator")})
	require.ErrorIs(t, err, ErrNoPlan)
	require.Equal(t, before, initial.String(), "methods must receive a copy too")
}

func TestSolve_RecoversPanics(t *testing.T) {
	t.Parallel()

	reg := domain.NewRegistry()
	require.NoError(t, reg.RegisterOperator("Boom", func(*worldstate.State, ...any) *worldstate.State {
		panic("kaboom")
	}))
	require.NoError(t, reg.RegisterOperator("Safe", addFact("safe", "yes")))
	require.NoError(t, reg.RegisterMethods("Goal",
		func(*worldstate.State, ...any) []domain.Task { panic("method kaboom") },
		func(*worldstate.State, ...any) []domain.Task { return []domain.Task{domain.NewTask("Boom")} },
		func(*worldstate.State, ...any) []domain.Task { return []domain.Task{domain.NewTask("Safe")} },
	))

	var logs bytes.Buffer
	p := New(reg, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	plan, err := p.Solve(worldstate.New(), []domain.Task{domain.NewTask("Goal")})
	require.NoError(t, err)
	require.Equal(t, []string{"(Safe)"}, plan.Strings())
	assert.Contains(t, logs.String(), "kaboom")
	assert.Contains(t, logs.String(), "method kaboom")
}

func TestInvocationError(t *testing.T) {
	t.Parallel()

	err := &InvocationError{Task: domain.NewTask("Boom", "x"), Value: "bad"}
	require.Equal(t, "planner: (Boom, x) panicked: bad", err.Error())
}

func TestApply(t *testing.T) {
	t.Parallel()

	reg := domain.NewRegistry()
	require.NoError(t, reg.RegisterOperator("A", addFact("done", "a")))
	require.NoError(t, reg.RegisterOperator("Fail", fail))
	require.NoError(t, reg.RegisterMethods("M", func(*worldstate.State, ...any) []domain.Task { return nil }))
	p := New(reg, WithLogger(quietLogger()))

	initial := worldstate.New()
	final, err := p.Apply(initial, Plan{domain.NewTask("A")})
	require.NoError(t, err)
	require.True(t, final.HasFactValue("done", "a"))
	require.False(t, initial.HasFact("done"))

	_, err = p.Apply(initial, Plan{domain.NewTask("A"), domain.NewTask("Fail")})
	require.ErrorIs(t, err, ErrInvalidStep)
	require.Contains(t, err.Error(), "1 (Fail)")

	_, err = p.Apply(initial, Plan{domain.NewTask("M")})
	require.ErrorIs(t, err, ErrInvalidStep)

	empty, err := p.Apply(initial, nil)
	require.NoError(t, err)
	require.True(t, empty.Equal(initial))
	require.NotSame(t, initial, empty)

	_, err = p.Apply(nil, nil)
	require.Error(t, err)
}

func TestNew_NilRegistryPanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { New(nil) })
}

func BenchmarkSolve_Chain(b *testing.B) {
	reg := domain.NewRegistry()
	_ = reg.RegisterOperator("Step", func(s *worldstate.State, args ...any) *worldstate.State {
		s.AddFact("step", args[0].(string))
		return s
	})
	_ = reg.RegisterMethods("Chain", func(s *worldstate.State, args ...any) []domain.Task {
		n := args[0].(int)
		if n == 0 {
			return []domain.Task{}
		}
		return []domain.Task{domain.NewTask("Step", string(rune('a'+n%26))), domain.NewTask("Chain", n-1)}
	})
	p := New(reg, WithMaxDepth(100), WithLogger(quietLogger()))
	goal := []domain.Task{domain.NewTask("Chain", 20)}

	b.ReportAllocs()
	for b.Loop() {
		if _, err := p.Solve(worldstate.New(), goal); err != nil {
			b.Fatal(err)
		}
	}
}
