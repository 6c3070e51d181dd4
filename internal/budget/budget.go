// Package budget tracks monotonic cost accounting for a task and its
// sub-tasks. A Budget carries three non-decreasing counters — total,
// allocated, and spent — and enforces spent <= allocated <= total on
// every mutation.
package budget

import "fmt"

// Budget tracks total, allocated, and spent amounts in cents. Fields are
// unexported: every mutation goes through a method that enforces the
// invariants below.
//
// Invariants:
//   - allocated <= total
//   - spent <= allocated
type Budget struct {
	totalCents     uint64
	allocatedCents uint64
	spentCents     uint64
}

// New creates a budget with the given total and nothing allocated or spent.
// Nothing can be spent from it until some of its total is allocated, either
// via Allocate/CreateSubBudget from a parent, or via AllocateRemaining if
// this budget is itself the terminal spender.
func New(totalCents uint64) *Budget {
	return &Budget{totalCents: totalCents}
}

// NewRoot creates a budget with its entire total already allocated to
// itself, for use as a mission's top-level budget where there is no
// parent to call Allocate on its behalf and the root itself will spend
// directly rather than split into sub-budgets.
func NewRoot(totalCents uint64) *Budget {
	b := New(totalCents)
	b.AllocateRemaining()
	return b
}

// Unlimited returns a root budget with an effectively unlimited total, for
// tests and offline tooling. Not for production use.
func Unlimited() *Budget {
	return NewRoot(^uint64(0))
}

// Default returns the default root budget of 100 cents ($1.00).
func Default() *Budget {
	return NewRoot(100)
}

// TotalCents returns the total budget.
func (b *Budget) TotalCents() uint64 { return b.totalCents }

// AllocatedCents returns the amount allocated to sub-budgets.
func (b *Budget) AllocatedCents() uint64 { return b.allocatedCents }

// SpentCents returns the amount actually spent.
func (b *Budget) SpentCents() uint64 { return b.spentCents }

// RemainingCents returns total - allocated, saturating at zero.
func (b *Budget) RemainingCents() uint64 {
	return saturatingSub(b.totalCents, b.allocatedCents)
}

// UnspentCents returns allocated - spent, saturating at zero.
func (b *Budget) UnspentCents() uint64 {
	return saturatingSub(b.allocatedCents, b.spentCents)
}

// HasRemaining reports whether any budget remains to allocate.
func (b *Budget) HasRemaining() bool {
	return b.RemainingCents() > 0
}

// IsExhausted reports whether all allocated budget has been spent.
func (b *Budget) IsExhausted() bool {
	return b.spentCents >= b.allocatedCents
}

// AllocationExceedsTotalError is returned when an allocation would push
// allocated past total.
type AllocationExceedsTotalError struct {
	Requested uint64
	Remaining uint64
}

func (e *AllocationExceedsTotalError) Error() string {
	return fmt.Sprintf("allocation of %d cents exceeds remaining budget of %d cents", e.Requested, e.Remaining)
}

// SpendingExceedsAllocatedError is returned when a spend would push spent
// past allocated.
type SpendingExceedsAllocatedError struct {
	Requested uint64
	Available uint64
}

func (e *SpendingExceedsAllocatedError) Error() string {
	return fmt.Sprintf("spending of %d cents exceeds available budget of %d cents", e.Requested, e.Available)
}

// Allocate reserves amount cents from the budget's remaining total for a
// sub-task. Failure leaves the budget unchanged.
func (b *Budget) Allocate(amount uint64) error {
	newAllocated := saturatingAdd(b.allocatedCents, amount)
	if newAllocated > b.totalCents {
		return &AllocationExceedsTotalError{Requested: amount, Remaining: b.RemainingCents()}
	}
	b.allocatedCents = newAllocated
	return nil
}

// AllocateRemaining allocates whatever is left of the budget's total to
// itself. A terminal spender (one that will never itself split its
// budget further into sub-budgets) calls this once before spending.
func (b *Budget) AllocateRemaining() {
	b.allocatedCents = b.totalCents
}

// Spend records spending against the allocated budget. Failure leaves the
// budget unchanged.
func (b *Budget) Spend(amount uint64) error {
	newSpent := saturatingAdd(b.spentCents, amount)
	if newSpent > b.allocatedCents {
		return &SpendingExceedsAllocatedError{Requested: amount, Available: b.UnspentCents()}
	}
	b.spentCents = newSpent
	return nil
}

// TrySpend spends min(amount, unspent) and never fails, returning the
// amount actually spent.
func (b *Budget) TrySpend(amount uint64) uint64 {
	available := b.UnspentCents()
	actual := amount
	if actual > available {
		actual = available
	}
	b.spentCents += actual
	return actual
}

// CanAfford reports whether cost fits within the unspent budget.
func (b *Budget) CanAfford(cost uint64) bool {
	return cost <= b.UnspentCents()
}

// CreateSubBudget allocates amount from this budget and returns a new,
// independent Budget with total == amount. The parent's spend is never
// coupled to the child's; the caller must record the child's actual spend
// back onto the parent via Spend once the child completes.
func (b *Budget) CreateSubBudget(amount uint64) (*Budget, error) {
	if err := b.Allocate(amount); err != nil {
		return nil, err
	}
	return New(amount), nil
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
