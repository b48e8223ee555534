package limiter

import (
	"context"
	"fmt"
	"time"
)

func ExampleMemoryLimiter() {
	l := NewMemoryLimiter()

	limit := Limit{
		Window:      time.Minute,
		MaxRequests: 10,
	}
	id := Identity{Namespace: "user", Key: "user_123"}

	dec, err := l.Allow(context.Background(), id, limit)
	if err != nil {
		panic(err)
	}

	fmt.Println(dec.Allow, dec.Remaining)
	// Output:
	// true 9
}

func ExampleGuard() {
	g, err := NewGuard(NewMemoryLimiter(), DefaultPolicies(), ByAddress)
	if err != nil {
		panic(err)
	}

	caller := RequestInfo{Address: "203.0.113.7"}
	for i := 0; i < 5; i++ {
		g.Check(context.Background(), CategoryAuth, caller)
	}
	dec, _ := g.Check(context.Background(), CategoryAuth, caller)

	fmt.Println(dec.Allow, dec.Limit)
	// Output:
	// false 5
}
