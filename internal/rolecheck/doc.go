// Package rolecheck second-guesses the classifier's role labels. It
// re-scores each image against text-density and keyword heuristics and
// cross-checks roles within a provisional product group so every group ends
// up with at most one front.
package rolecheck
