// Package gl stores per-site, per-sample genotype likelihoods and
// reads them from VCF files.
package gl

import (
	"fmt"

	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"
)

// log is the global logging variable.
var log = logging.MustGetLogger("gl")

// NGType is the number of genotype classes (RR, RA, AA).
const NGType = 3

// Likelihoods is an immutable (site × sample × genotype) array of
// Phred-scaled genotype likelihoods.
type Likelihoods struct {
	nSite   int
	nSample int
	data    []float64
}

// New creates zero likelihoods for nSite sites and nSample samples.
func New(nSite, nSample int) *Likelihoods {
	if nSite < 0 || nSample < 0 {
		panic(fmt.Sprintf("negative likelihood dimensions %dx%d", nSite, nSample))
	}
	return &Likelihoods{
		nSite:   nSite,
		nSample: nSample,
		data:    make([]float64, nSite*nSample*NGType),
	}
}

// FromArray creates likelihoods from a nested [site][sample][genotype]
// array.
func FromArray(pls [][][]float64) (*Likelihoods, error) {
	if len(pls) == 0 {
		return nil, fmt.Errorf("no sites")
	}
	l := New(len(pls), len(pls[0]))
	for s, site := range pls {
		if len(site) != l.nSample {
			return nil, fmt.Errorf("site %d has %d samples, expected %d", s, len(site), l.nSample)
		}
		for j, pl := range site {
			if len(pl) != NGType {
				return nil, fmt.Errorf("site %d, sample %d has %d genotypes", s, j, len(pl))
			}
			for g, v := range pl {
				if v < 0 {
					return nil, fmt.Errorf("negative likelihood at site %d, sample %d", s, j)
				}
				l.Set(s, j, g, v)
			}
		}
	}
	return l, nil
}

// Dims returns number of sites and samples.
func (l *Likelihoods) Dims() (nSite, nSample int) {
	return l.nSite, l.nSample
}

// NSite returns the number of sites.
func (l *Likelihoods) NSite() int {
	return l.nSite
}

// NSample returns the number of samples.
func (l *Likelihoods) NSample() int {
	return l.nSample
}

func (l *Likelihoods) index(site, sample, g int) int {
	return (site*l.nSample+sample)*NGType + g
}

// At returns the likelihood of genotype g for a sample at a site.
func (l *Likelihoods) At(site, sample, g int) float64 {
	return l.data[l.index(site, sample, g)]
}

// Set sets the likelihood of genotype g for a sample at a site. It is
// only meant to be used while the array is being filled.
func (l *Likelihoods) Set(site, sample, g int, v float64) {
	l.data[l.index(site, sample, g)] = v
}

// Row returns the genotype likelihoods of a sample at a site. The
// returned slice shares memory with l.
func (l *Likelihoods) Row(site, sample int) []float64 {
	i := l.index(site, sample, 0)
	return l.data[i : i+NGType]
}

// Sample returns a (site × genotype) copy of the likelihoods of one
// sample.
func (l *Likelihoods) Sample(sample int) *mat64.Dense {
	m := mat64.NewDense(l.nSite, NGType, nil)
	for s := 0; s < l.nSite; s++ {
		m.SetRow(s, l.Row(s, sample))
	}
	return m
}

// SelectSites returns new likelihoods with only the sites for which
// keep is true.
func (l *Likelihoods) SelectSites(keep []bool) *Likelihoods {
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}
	res := New(n, l.nSample)
	i := 0
	for s, k := range keep {
		if !k {
			continue
		}
		copy(res.data[i*l.nSample*NGType:(i+1)*l.nSample*NGType],
			l.data[s*l.nSample*NGType:(s+1)*l.nSample*NGType])
		i++
	}
	return res
}
