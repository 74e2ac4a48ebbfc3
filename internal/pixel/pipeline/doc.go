// Package pipeline is the event loop of the cluster producer. It pulls
// events from a Source, runs the producer on each, fans the output out
// to Sinks and keeps the run record and metrics up to date.
//
// A geometry mismatch or other event failure stops the loop when
// StopOnFatal is set; otherwise the event is dropped, logged to the ops
// stream and counted, and the loop moves on.
package pipeline
