/*
Package session serializes access to conversion sessions.

A session is one run of the conversion workflow identified by an ID. The
Manager guarantees that at most one caller advances a given session at a
time, in process through ref-counted mutexes and across replicas through an
optional ports.DistributedLocker.
*/
package session
