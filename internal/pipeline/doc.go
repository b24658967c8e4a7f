// Package pipeline runs one stage over a batch of catalog items.
//
// Executor.Run claims eligible items, hands each to the registered stage
// handler in node_id order, and persists the outcome with Complete or Fail.
// A single item's failure never aborts the batch. Cancellation is honoured
// between items: the current item finishes, the rest of the claim is failed so
// the next run picks it up again.
package pipeline
