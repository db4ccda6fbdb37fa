// Package loop drives one agent task: it asks the model for a tool call,
// runs the call, records the result in the transcript and repeats until a
// finish tool or the call budget ends the run.
//
// A run can pause when a call needs human input. Without a Prompter the
// controller returns a Suspended outcome and keeps the pending call; the
// caller resumes it with ResumeApproval or ResumeClarification. The
// transcript is snapshotted to the Store at every exit.
package loop
