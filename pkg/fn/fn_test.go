package fn

import (
	"context"
	"errors"
	"strconv"
	"testing"
)

// --- Result ---

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatal("wrong unwrap")
	}

	e := Err[int](errors.New("fail"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("Err should be err")
	}
	if e.Error() == nil || e.Error().Error() != "fail" {
		t.Fatalf("Error() = %v", e.Error())
	}
}

func TestErrf(t *testing.T) {
	r := Errf[string]("code %d", 404)
	_, err := r.Unwrap()
	if err == nil || err.Error() != "code 404" {
		t.Fatal("Errf wrong message")
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); !r.IsOk() {
		t.Fatal("FromPair nil error should be ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Fatal("FromPair with error should be err")
	}
}

func TestPartition(t *testing.T) {
	vals, errs := Partition([]Result[string]{
		Ok("a"),
		Err[string](errors.New("bad")),
		Ok("c"),
	})
	if len(vals) != 2 || vals[0] != "a" || vals[1] != "c" {
		t.Fatalf("unexpected values: %v", vals)
	}
	if len(errs) != 1 || errs[1] == nil {
		t.Fatalf("expected failure at position 1, got %v", errs)
	}
}

// --- Slice ---

func TestMap(t *testing.T) {
	out := Map([]int{1, 2, 3}, strconv.Itoa)
	if len(out) != 3 || out[2] != "3" {
		t.Fatal("Map failed")
	}
}

func TestFilter(t *testing.T) {
	out := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if len(out) != 2 || out[0] != 2 {
		t.Fatal("Filter failed")
	}
}

func TestChunk(t *testing.T) {
	c := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(c) != 3 || len(c[2]) != 1 {
		t.Fatal("Chunk failed")
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("Chunk n<=0 should return nil")
	}
	if Chunk([]int{}, 3) != nil {
		t.Fatal("Chunk of empty input should be nil")
	}
}

func TestUnique(t *testing.T) {
	out := Unique([]string{"news", "sports", "news"})
	if len(out) != 2 || out[0] != "news" || out[1] != "sports" {
		t.Fatalf("Unique failed: %v", out)
	}
}

// --- Pipeline ---

func TestThen(t *testing.T) {
	double := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v * 2) })
	addOne := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v + 1) })

	v, err := Then(double, addOne)(context.Background(), 5).Unwrap()
	if err != nil || v != 11 {
		t.Fatal("Then failed")
	}
}

func TestThenShortCircuits(t *testing.T) {
	fail := Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("fail")) })
	called := false
	second := Stage[int, int](func(_ context.Context, v int) Result[int] {
		called = true
		return Ok(v)
	})

	r := Then(fail, second)(context.Background(), 1)
	if r.IsOk() || called {
		t.Fatal("Then should short-circuit")
	}
}

func TestMapStage(t *testing.T) {
	s := MapStage(func(v int) string { return strconv.Itoa(v) })
	v, _ := s(context.Background(), 42).Unwrap()
	if v != "42" {
		t.Fatal("MapStage failed")
	}
}

func TestCheckStage(t *testing.T) {
	positive := CheckStage(func(v int) error {
		if v <= 0 {
			return errors.New("not positive")
		}
		return nil
	})
	if !positive(context.Background(), 3).IsOk() {
		t.Fatal("CheckStage should pass valid input")
	}
	if positive(context.Background(), -1).IsOk() {
		t.Fatal("CheckStage should reject invalid input")
	}
}

func TestTracedStage(t *testing.T) {
	s := TracedStage("test-stage", Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v + 1) }))
	v, _ := s(context.Background(), 1).Unwrap()
	if v != 2 {
		t.Fatal("TracedStage failed")
	}

	e := TracedStage("err-stage", Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("x")) }))
	if e(context.Background(), 1).IsOk() {
		t.Fatal("TracedStage error should propagate")
	}
}
