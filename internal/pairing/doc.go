// Package pairing is the candidate scorer and decision engine. Given a
// complete set of classified images it corrects roles, generates and scores
// back candidates for each front, auto-accepts clear winners, escalates
// ambiguous sets to the tie-break judge, and partitions everything else
// into singletons.
package pairing
