// Package ml holds the small set of learning algorithms the recovery pipeline
// needs: a standard scaler, K-Means with k-means++ seeding and several
// restarts, a CART decision tree, a bootstrap random forest and a stratified
// train/test split.
//
// Everything here is deterministic for a given seed. Work that runs in
// parallel (K-Means restarts, forest trees) draws its per-unit seed serially
// from one master source before fanning out, and writes into a fixed result
// slot, so goroutine scheduling never changes the output.
package ml
