package store

import "github.com/franz/gym-league/internal/schema"

// Order is a rebuild sequence over a set of tables
type Order struct {
	Tables []string

	// Cyclic is set when the foreign keys among the set contain a cycle.
	// The tables left on the cycle are appended in discovery order and
	// carry no ordering guarantee.
	Cyclic bool
}

// RebuildOrder orders tables so that each one comes after every table in
// the set it references by foreign key. References to tables outside the
// set and self references are ignored. Tables become eligible in waves:
// every table whose dependencies were placed by an earlier wave is placed,
// in the order given.
func RebuildOrder(tables []string, declared *schema.Schema) Order {
	inSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		inSet[t] = true
	}

	deps := make(map[string][]string, len(tables))
	for _, name := range tables {
		t, ok := declared.Table(name)
		if !ok {
			continue
		}
		for _, d := range t.Dependencies() {
			if inSet[d] {
				deps[name] = append(deps[name], d)
			}
		}
	}

	var order Order
	placed := make(map[string]bool, len(tables))
	remaining := dedupe(tables)

	for len(remaining) > 0 {
		var wave, next []string
		for _, name := range remaining {
			ready := true
			for _, d := range deps[name] {
				if !placed[d] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, name)
			} else {
				next = append(next, name)
			}
		}

		if len(wave) == 0 {
			order.Tables = append(order.Tables, next...)
			order.Cyclic = true
			break
		}
		for _, name := range wave {
			placed[name] = true
		}
		order.Tables = append(order.Tables, wave...)
		remaining = next
	}

	return order
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
