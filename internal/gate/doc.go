// Package gate is the service API other components use to ask the human on
// the other side of the mailbox for input.
//
// A request runs through three steps that share one correlation id: emit the
// trigger, wait for the frontend's acknowledgement, wait for the response.
// AwaitResult folds the last two into one loop bounded by a single deadline,
// so a caller-supplied timeout means what it says. Timing out is a normal
// Result, not an error.
//
// Shutdown is privileged: RequestShutdown asks the user to confirm and only a
// reply from the configured token set trips the shutdown coordinator.
package gate
