package gl

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"
)

// evidenceCount is the number of summed genotype likelihoods which
// should reach the evidence threshold for a site to be kept.
// TODO: this used to be 3, check which one is right.
const evidenceCount = 2

// EvidenceFilter returns the sites to keep. For every site each
// sample's likelihoods are sorted, then summed position-wise across
// the samples. The site is kept if exactly evidenceCount of these
// totals are at least evidence, i.e. the most likely genotype of
// every sample is strongly supported jointly.
func EvidenceFilter(pl *Likelihoods, evidence float64) []bool {
	nSite, nSample := pl.Dims()
	keep := make([]bool, nSite)
	sorted := make([]float64, NGType)
	for s := 0; s < nSite; s++ {
		var totals [NGType]float64
		for j := 0; j < nSample; j++ {
			copy(sorted, pl.Row(s, j))
			sort.Float64s(sorted)
			for g, v := range sorted {
				totals[g] += v
			}
		}
		n := 0
		for _, t := range totals {
			if t >= evidence {
				n++
			}
		}
		keep[s] = n == evidenceCount
	}
	return keep
}

// ReadLabels reads a tab-separated label file. Lines with two or more
// columns map the first column to the second one; lines with a single
// column map the line index (starting with 0) to it.
func ReadLabels(rd io.Reader) (map[string]string, error) {
	labels := make(map[string]string)
	scanner := bufio.NewScanner(rd)
	i := 0
	for scanner.Scan() {
		c := strings.Split(strings.TrimRight(scanner.Text(), "\r\n "), "\t")
		if len(c) > 1 {
			labels[c[0]] = c[1]
		} else {
			labels[strconv.Itoa(i)] = c[0]
		}
		i++
	}
	return labels, scanner.Err()
}
