// Package dispatcher runs the worker side of the job lifecycle.
//
// A Worker owns one EntryPoint. It opens a duplex channel, waits for the
// server's ack, subscribes to job requests and then handles events one at a
// time: it reads the job instance, resolves its inputs against the template,
// marks it Running, downloads node inputs, runs the configured command,
// publishes the output as an artifact and marks the job Completed. Once a job
// is Running exactly one terminal status (Completed or Failed) is written,
// even when processing panics.
//
// The worker keeps listening on the same channel after each event and
// resubscribes with capped exponential backoff whenever the channel is lost
// or the server breaks the protocol. Manager runs one worker per configured
// job; workers share nothing.
package dispatcher
