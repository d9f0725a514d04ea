// Package redis provides Redis backed session storage, distributed locking and
// an example corpus, for deployments running several converter replicas.
package redis
