/*
Package session serializes access to workflow threads.

A Manager hands out one in-process mutex per thread id, reference counted so idle ids do not
accumulate, and optionally takes a ports.DistributedLocker lock on top so that several replicas
sharing a durable checkpointer never run the same thread concurrently.
*/
package session
