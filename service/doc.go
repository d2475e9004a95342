// Package service owns the published document.
//
// DocumentService is the only write entry point: it assigns versions,
// persists each change together with its outbox record, then installs the
// new document in an rcu.Cell so readers (gRPC, the watcher, tests) never
// take a lock. Transports live in api/.
package service
