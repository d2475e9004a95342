// Package memory provides the allocation primitives behind the rcu cell.
//
// Nodes published through an rcu.Cell are allocated from a Pool and
// handed back to it the instant their strong count drops to zero, so
// allocation and reclamation stay explicit operations owned by the cell
// rather than something left to the garbage collector's timing.
package memory
