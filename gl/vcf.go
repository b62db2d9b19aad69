package gl

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Variant is a site description.
type Variant struct {
	Chrom string
	Pos   int
	Ref   string
	Alt   string
}

// String returns a chrom:pos:ref>alt representation of the variant.
func (v Variant) String() string {
	return fmt.Sprintf("%s:%d:%s>%s", v.Chrom, v.Pos, v.Ref, v.Alt)
}

// Data is the content of a VCF file relevant for the tree estimation.
type Data struct {
	// Samples are sample names in the VCF column order.
	Samples []string
	// Variants are the accepted sites.
	Variants []Variant
	// AD are allele depths of the reference and the first
	// alternative allele, indexed by site, sample.
	AD [][][2]int
	// PL are genotype likelihoods.
	PL *Likelihoods
}

// bases are the accepted alternative alleles.
var bases = map[string]bool{"A": true, "C": true, "G": true, "T": true}

// Open opens a VCF file for reading. "-" means standard input, files
// ending with .gz are decompressed.
func Open(fn string) (io.ReadCloser, error) {
	var f io.ReadCloser = os.Stdin
	if fn != "-" {
		var err error
		f, err = os.Open(fn)
		if err != nil {
			return nil, err
		}
	}
	if !strings.HasSuffix(fn, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipFile{gz, f}, nil
}

// gzipFile closes both the decompressor and the underlying file.
type gzipFile struct {
	*gzip.Reader
	f io.Closer
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if ferr := g.f.Close(); err == nil {
		err = ferr
	}
	return err
}

// parseInts parses comma separated integers. Missing values (".")
// result in ok=false.
func parseInts(s string, n int) (res []int, ok bool, err error) {
	if s == "" || s == "." {
		return nil, false, nil
	}
	fields := strings.Split(s, ",")
	if len(fields) < n {
		return nil, false, fmt.Errorf("expected at least %d values, got %q", n, s)
	}
	res = make([]int, n)
	for i := 0; i < n; i++ {
		if fields[i] == "." {
			return nil, false, nil
		}
		res[i], err = strconv.Atoi(fields[i])
		if err != nil {
			return nil, false, err
		}
	}
	return res, true, nil
}

// ReadVCF reads genotype likelihoods from a VCF stream. Only the sites
// where the first alternative allele is a single base are kept. For
// every sample the first three PL values (RR, RA, AA) and the first
// two AD values are used; missing PL means no evidence (all zeros).
func ReadVCF(rd io.Reader) (*Data, error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024*1024)

	data := &Data{}
	var pls [][][]float64
	header := false
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" || strings.HasPrefix(text, "##") {
			continue
		}
		fields := strings.Split(text, "\t")
		if strings.HasPrefix(text, "#") {
			if len(fields) < 10 {
				return nil, errors.New("VCF header has no samples")
			}
			data.Samples = append([]string(nil), fields[9:]...)
			header = true
			continue
		}
		if !header {
			return nil, fmt.Errorf("line %d: record before the #CHROM header", line)
		}
		if len(fields) != 9+len(data.Samples) {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, 9+len(data.Samples), len(fields))
		}
		alt := strings.Split(fields[4], ",")[0]
		if !bases[strings.ToUpper(alt)] {
			continue
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", line, err)
		}

		plIdx, adIdx := -1, -1
		for i, f := range strings.Split(fields[8], ":") {
			switch f {
			case "PL":
				plIdx = i
			case "AD":
				adIdx = i
			}
		}

		sitePL := make([][]float64, len(data.Samples))
		siteAD := make([][2]int, len(data.Samples))
		for j, sample := range fields[9:] {
			sitePL[j] = make([]float64, NGType)
			values := strings.Split(sample, ":")
			if plIdx >= 0 && plIdx < len(values) {
				pl, ok, err := parseInts(values[plIdx], NGType)
				if err != nil {
					return nil, fmt.Errorf("line %d, sample %s: PL: %v", line, data.Samples[j], err)
				}
				if ok {
					for g, v := range pl {
						sitePL[j][g] = float64(v)
					}
				}
			}
			if adIdx >= 0 && adIdx < len(values) {
				ad, ok, err := parseInts(values[adIdx], 2)
				if err != nil {
					return nil, fmt.Errorf("line %d, sample %s: AD: %v", line, data.Samples[j], err)
				}
				if ok {
					siteAD[j] = [2]int{ad[0], ad[1]}
				}
			}
		}

		data.Variants = append(data.Variants, Variant{fields[0], pos, fields[3], alt})
		data.AD = append(data.AD, siteAD)
		pls = append(pls, sitePL)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !header {
		return nil, errors.New("no #CHROM header found")
	}

	if len(pls) == 0 {
		data.PL = New(0, len(data.Samples))
		return data, nil
	}
	pl, err := FromArray(pls)
	if err != nil {
		return nil, err
	}
	data.PL = pl
	log.Infof("Read %d sites for %d samples", len(data.Variants), len(data.Samples))
	return data, nil
}

// Filter keeps only the sites for which keep is true.
func (d *Data) Filter(keep []bool) *Data {
	res := &Data{Samples: d.Samples, PL: d.PL.SelectSites(keep)}
	for i, k := range keep {
		if k {
			res.Variants = append(res.Variants, d.Variants[i])
			res.AD = append(res.AD, d.AD[i])
		}
	}
	return res
}

// MeanDepth returns the average total allele depth per site and
// sample.
func (d *Data) MeanDepth() float64 {
	n, s := 0, 0
	for _, site := range d.AD {
		for _, ad := range site {
			s += ad[0] + ad[1]
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(s) / float64(n)
}
