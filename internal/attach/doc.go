// Package attach follows a job submitted to a batch queue from submission to
// completion.
//
// A Poller tracks the job's status. Once the job is running, a Renderer per
// output stream tails the job's output file and writes new lines to a shared
// sink until the job stops running. A Monitor drives submission, waiting for
// launch, rendering and, on interrupt, cancellation of the job.
//
// All waiting goes through an injected Clock, so tests can drive the state
// machine without real delays.
package attach
