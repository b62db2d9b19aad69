package main

import "github.com/treest/treest/search"

// RunSummary is storing treest run summary information.
type RunSummary struct {
	// Version stores treest version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Seed is the seed used for random number generation initialization.
	Seed int64 `json:"seed"`
	// NThreads is the number of processes used.
	NThreads int `json:"nThreads"`
	// NSites is the number of sites after filtering.
	NSites int `json:"nSites"`
	// NSamples is the number of samples.
	NSamples int `json:"nSamples"`
	// StartTree is the neighbor joining (or partition) tree.
	StartTree string `json:"startTree"`
	// StartScore is the score of the start tree.
	StartScore float64 `json:"startScore"`
	// NNITree is the tree after recursive NNI.
	NNITree string `json:"nniTree"`
	// NNIScore is the score after recursive NNI.
	NNIScore float64 `json:"nniScore"`
	// Sweeps is the number of recursive NNI sweeps.
	Sweeps int `json:"sweeps"`
	// FinalTree is the tree after recursive rerooting.
	FinalTree string `json:"finalTree"`
	// FinalScore is the score of the final tree, lower is better.
	FinalScore float64 `json:"finalScore"`
	// PLPerSite is the final score divided by the number of sites.
	PLPerSite float64 `json:"plPerSite"`
	// Trace stores the score after every search step.
	Trace []search.TracePoint `json:"trace,omitempty"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`
}
