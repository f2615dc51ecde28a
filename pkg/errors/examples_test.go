package errors_test

import (
	"fmt"

	"github.com/seekmed/medharvest/pkg/errors"
)

// Example demonstrates basic error creation and checking.
func Example() {
	err := &errors.NotFoundError{
		Resource: "concept",
		ID:       "Q12136",
	}

	if errors.IsNotFound(err) {
		fmt.Println("Concept not stored yet")
	}

	// Output: Concept not stored yet
}

// Example_backoffClassification shows how HTTP failures map onto the
// retry policy's error classes.
func Example_backoffClassification() {
	classify := func(err error) string {
		switch {
		case errors.IsRateLimited(err):
			return "rate-limited"
		case errors.IsOverloaded(err):
			return "overloaded"
		case errors.IsNetworkTransient(err):
			return "network"
		case errors.Retryable(err):
			return "other"
		default:
			return "terminal"
		}
	}

	fmt.Println(classify(errors.NewAPIError("sparql", 429, "slow down")))
	fmt.Println(classify(errors.NewAPIError("sparql", 504, "gateway timeout")))
	fmt.Println(classify(errors.WrapNetwork("sparql", errors.New("connection reset"))))
	fmt.Println(classify(errors.NewAPIError("sparql", 500, "internal error")))
	fmt.Println(classify(errors.NewAPIError("sparql", 400, "malformed query")))

	// Output:
	// rate-limited
	// overloaded
	// network
	// other
	// terminal
}

// Example_storageConflict demonstrates the CAS-retry signal from the store.
func Example_storageConflict() {
	err := errors.NewConflictError("concept", "Q42")

	if errors.IsStorageConflict(err) {
		fmt.Println("re-read and reconcile again")
	}

	// Output: re-read and reconcile again
}

// Example_retriesExhausted shows terminal conversion after the retry budget.
func Example_retriesExhausted() {
	base := errors.NewAPIError("sparql", 503, "service unavailable")
	err := errors.ExhaustRetries(base, 3)

	fmt.Println(errors.IsRetriesExhausted(err))
	fmt.Println(errors.IsOverloaded(err))

	// Output:
	// true
	// true
}
