package pool

import (
	"context"
	"fmt"
	"testing"
)

func TestOrderedPoolPreservesSubmissionOrder(t *testing.T) {
	ctx := context.Background()
	p := New(ctx, 4)

	const n = 200
	for i := 0; i < n; i++ {
		i := i
		if _, err := p.Submit(func(tid int) (interface{}, error) {
			return i, nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	go p.Close()

	want := 0
	for res := range p.Results() {
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if res.Value.(int) != want {
			t.Fatalf("out-of-order result: got %d, want %d", res.Value.(int), want)
		}
		want++
	}
	if want != n {
		t.Fatalf("received %d results, want %d", want, n)
	}
}

func TestOrderedPoolPropagatesTaskError(t *testing.T) {
	ctx := context.Background()
	p := New(ctx, 2)

	boom := fmt.Errorf("boom")
	p.Submit(func(tid int) (interface{}, error) { return nil, boom })
	p.Submit(func(tid int) (interface{}, error) { return 1, nil })
	go p.Close()

	var sawErr bool
	for res := range p.Results() {
		if res.Err != nil {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatalf("expected to observe the task error in results")
	}
}

func TestStaticRunsEveryIndexExactlyOnce(t *testing.T) {
	const n = 97
	seen := make([]int, n)
	err := Static(context.Background(), 8, n, func(i, tid int) error {
		seen[i]++
		return nil
	})
	if err != nil {
		t.Fatalf("Static: %v", err)
	}
	for i, c := range seen {
		if c != 1 {
			t.Fatalf("index %d ran %d times, want 1", i, c)
		}
	}
}

func TestStaticPropagatesFirstError(t *testing.T) {
	boom := fmt.Errorf("boom")
	err := Static(context.Background(), 4, 16, func(i, tid int) error {
		if i == 10 {
			return boom
		}
		return nil
	})
	if err == nil {
		t.Fatalf("expected an error")
	}
}
