package rcu_test

import (
	"fmt"

	"rcucell/rcu"
)

func Example() {
	c := rcu.NewWith("v1")

	g := c.Read()
	c.Write("v2")
	fmt.Println(g.Value())
	g.Release()

	v, _ := c.Load()
	fmt.Println(v)
	// Output:
	// v1
	// v2
}

func ExampleCell_TryLock() {
	c := rcu.NewWith(5)

	h := c.TryLock()
	fmt.Println(c.TryLock() == nil)

	prev, ok := h.Clear()
	fmt.Println(prev, ok, c.IsNone())
	h.Unlock()

	fmt.Println(c.TryLock() != nil)
	// Output:
	// true
	// 5 true true
	// true
}

func ExampleCell_Update() {
	c := rcu.New[int]()
	for i := 0; i < 3; i++ {
		c.Update(func(old int, ok bool) (int, bool) {
			return old + 1, true
		})
	}
	v, _ := c.Load()
	fmt.Println(v)
	// Output: 3
}
