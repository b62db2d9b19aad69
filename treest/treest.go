/*

Treest estimates a binary tree of samples from the genotype likelihoods
(PL) stored in a VCF file.

A start tree is built by neighbor joining (or by hard partitioning, or
read from a newick file), then improved by recursive nearest neighbor
interchange and recursive rerooting under a single mutation model.

The basic usage looks like this:

	treest calls.vcf.gz out

, this will write out.nj0.nwk (start tree), out.nni.nwk and the
final tree out.nj.nwk.

To see all the options run:

	treest -h

*/
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"

	"github.com/treest/treest/checkpoint"
	"github.com/treest/treest/gl"
	"github.com/treest/treest/gtype"
	"github.com/treest/treest/likelihood"
	"github.com/treest/treest/nj"
	"github.com/treest/treest/partition"
	"github.com/treest/treest/search"
	"github.com/treest/treest/tree"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("treest")
var formatter = logging.MustStringFormatter(`%{message}`)

// modules are all the loggers of the program.
var modules = []string{"treest", "gl", "nj", "partition", "likelihood", "search", "checkpoint"}

// command-line options
var (
	// application
	app = kingpin.New("treest", "tree estimation from genotype likelihoods").Version(version)

	// input and output
	vcfFileName = app.Arg("vcf", "input VCF or VCF.gz file, - for stdin").Required().String()
	outBase     = app.Arg("output", "output basename").Required().String()

	// model parameters
	mu    = app.Flag("mu", "mutation rate in Phred scale").Default("80").Float64()
	het   = app.Flag("het", "heterozygous rate in Phred scale").Default("30").Float64()
	minEv = app.Flag("min-ev", "minimum evidence in Phred scale for a site to be considered").Default("60").Float64()

	// search parameters
	delta  = app.Flag("delta", "relative score improvement required to accept a move").Default("0").Float64()
	method = app.Flag("method", "start tree method "+
		"(nj: neighbor joining, "+
		"partition: recursive hard partitioning, "+
		"file: newick file given by --start)").
		Default("nj").
		Enum("nj", "partition", "file")
	startF    = app.Flag("start", "start tree in newick format").ExistingFile()
	threshold = app.Flag("threshold", "partition: enumerate all splits up to this number of samples, sample 2^threshold splits above").Default("20").Int()
	maxSweeps = app.Flag("max-sweeps", "maximum number of recursive NNI sweeps").Default("1000").Int()
	labelF    = app.Flag("label", "tab-separated sample label file").ExistingFile()

	// technical
	nThreads          = app.Flag("nt", "number of threads to use").Int()
	seed              = app.Flag("seed", "random generator seed, default time based").Default("-1").Int64()
	cpuProfile        = app.Flag("cpuprofile", "write cpu profile to file").String()
	checkpointF       = app.Flag("checkpoint", "checkpoint database file").String()
	checkpointSeconds = app.Flag("checkpoint-seconds", "minimum seconds between intermediate checkpoints").Default("60").Float64()

	// output
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	jsonF = app.Flag("json", "write json output to a file").String()
	plotF = app.Flag("plot", "plot the score trace to a PNG file").String()
)

// labelNames replaces sample names by labels. A label is looked up
// by the sample name first, then by the sample index.
func labelNames(samples []string, labels map[string]string) []string {
	names := make([]string, len(samples))
	for i, s := range samples {
		names[i] = s
		if l, ok := labels[s]; ok {
			names[i] = l
		} else if l, ok := labels[strconv.Itoa(i)]; ok {
			names[i] = l
		}
	}
	return names
}

// buildStartTree creates the start tree with the given method.
func buildStartTree(method string, pl *gl.Likelihoods, names []string, rnd *rand.Rand) (*tree.Tree, error) {
	switch method {
	case "nj":
		D, err := nj.DistanceMatrix(pl)
		if err != nil {
			return nil, err
		}
		return nj.Join(D, names)
	case "partition":
		return partition.Partition(pl, names, *minEv, partition.NewSelector(*threshold, rnd))
	case "file":
		if *startF == "" {
			return nil, fmt.Errorf("method file requires --start")
		}
		return readTree(*startF, names)
	}
	return nil, fmt.Errorf("unknown start tree method: %s", method)
}

// readTree reads a newick file.
func readTree(fn string, names []string) (*tree.Tree, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tree.ParseNewick(f, names)
}

// parseCheckpoint restores a tree saved in a checkpoint.
func parseCheckpoint(data *checkpoint.StageData, names []string) *tree.Tree {
	t, err := tree.ParseNewick(strings.NewReader(data.Newick), names)
	if err != nil {
		log.Fatalf("Error restoring %s checkpoint: %v", data.Stage, err)
	}
	return t
}

// writeTree writes the tree in newick format.
func writeTree(fn string, t *tree.Tree) {
	f, err := os.Create(fn)
	if err != nil {
		log.Error("Error creating tree output file:", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(t.String() + "\n"); err != nil {
		log.Error("Error writing tree:", err)
	}
}

func run(db *bolt.DB, rnd *rand.Rand) (summary *RunSummary) {
	startTime := time.Now()
	summary = &RunSummary{}

	vcfFile, err := gl.Open(*vcfFileName)
	if err != nil {
		log.Fatal(err)
	}
	data, err := gl.ReadVCF(vcfFile)
	vcfFile.Close()
	if err != nil {
		log.Fatal(err)
	}
	nRead := len(data.Variants)
	data = data.Filter(gl.EvidenceFilter(data.PL, *minEv))
	nSite, nSample := data.PL.Dims()
	log.Noticef("Kept %d of %d sites for %d samples, mean depth %.2f", nSite, nRead, nSample, data.MeanDepth())
	if nSite == 0 {
		log.Fatal("No sites left after filtering")
	}
	if nSample < 2 {
		log.Fatal("At least 2 samples are required")
	}
	summary.NSites = nSite
	summary.NSamples = nSample

	names := data.Samples
	if *labelF != "" {
		f, err := os.Open(*labelF)
		if err != nil {
			log.Fatal(err)
		}
		labels, err := gl.ReadLabels(f)
		f.Close()
		if err != nil {
			log.Fatal("Error reading labels:", err)
		}
		names = labelNames(names, labels)
	}

	mm, err := gtype.NewMutationModel(*mu, gtype.GType3)
	if err != nil {
		log.Fatal(err)
	}
	prior := gtype.BasePrior(*het, gtype.GType3)
	log.Infof("Base prior: %v", prior)
	model := likelihood.NewModel(data.PL, mm)

	prefix := fmt.Sprintf("%s mu=%v het=%v min-ev=%v delta=%v method=%v",
		*vcfFileName, *mu, *het, *minEv, *delta, *method)
	cp := checkpoint.NewCheckpointIO(db, []byte(prefix), *checkpointSeconds)

	// start tree
	var t *tree.Tree
	if saved, err := cp.Load(checkpoint.StageStart); err != nil {
		log.Fatal("Error loading checkpoint:", err)
	} else if saved != nil {
		t = parseCheckpoint(saved, names)
	} else {
		t, err = buildStartTree(*method, data.PL, names, rnd)
		if err != nil {
			log.Fatal(err)
		}
	}
	model.Populate(t)
	score := likelihood.Score(t, t.Root, prior)
	log.Noticef("Start tree score=%v", score)
	log.Debug(t.FullString())
	writeTree(*outBase+".nj0.nwk", t)
	summary.StartTree = t.String()
	summary.StartScore = score
	cp.Save(&checkpoint.StageData{Stage: checkpoint.StageStart, Newick: t.String(), Score: score, Final: true})

	s := search.New(model, prior, *delta)
	s.MaxSweeps = *maxSweeps
	s.OnSweep = func(sweep int, t *tree.Tree, score float64) {
		summary.Sweeps = sweep
		if cp.Old() {
			cp.Save(&checkpoint.StageData{Stage: checkpoint.StageNNI, Newick: t.String(), Score: score, Sweep: sweep})
		}
	}

	// recursive NNI
	saved, err := cp.Load(checkpoint.StageNNI)
	if err != nil {
		log.Fatal("Error loading checkpoint:", err)
	}
	if saved != nil && saved.Final {
		t = parseCheckpoint(saved, names)
		model.Populate(t)
		score = likelihood.Score(t, t.Root, prior)
		summary.Sweeps = saved.Sweep
	} else {
		if saved != nil {
			t = parseCheckpoint(saved, names)
			model.Populate(t)
		}
		t, score = s.RecursiveNNI(t)
		cp.Save(&checkpoint.StageData{Stage: checkpoint.StageNNI, Newick: t.String(), Score: score,
			Sweep: summary.Sweeps, Final: true})
	}
	log.Noticef("NNI tree score=%v", score)
	log.Info(t)
	writeTree(*outBase+".nni.nwk", t)
	summary.NNITree = t.String()
	summary.NNIScore = score

	// recursive reroot
	if saved, err := cp.Load(checkpoint.StageReroot); err != nil {
		log.Fatal("Error loading checkpoint:", err)
	} else if saved != nil && saved.Final {
		t = parseCheckpoint(saved, names)
		model.Populate(t)
		score = likelihood.Score(t, t.Root, prior)
	} else {
		t, score = s.RecursiveReroot(t)
		cp.Save(&checkpoint.StageData{Stage: checkpoint.StageReroot, Newick: t.String(), Score: score, Final: true})
	}
	log.Noticef("Final tree score=%v", score)
	log.Info(t)
	writeTree(*outBase+".nj.nwk", t)
	summary.FinalTree = t.String()
	summary.FinalScore = score
	summary.PLPerSite = score / float64(nSite)
	fmt.Printf("PL_per_site = %.4f\n", summary.PLPerSite)

	summary.Trace = s.Trace
	if *plotF != "" {
		if err := plotTrace(*plotF, s.Trace); err != nil {
			log.Error("Error plotting score trace:", err)
		}
	}

	deltaT := time.Since(startTime)
	log.Noticef("Running time: %v", deltaT)
	summary.Time = deltaT.Seconds()

	return
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, module := range modules {
		logging.SetLevel(level, module)
	}

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	if *seed == -1 {
		*seed = time.Now().UnixNano()
		log.Debug("Random seed from time")
	}
	log.Infof("Random seed=%v", *seed)
	rnd := rand.New(rand.NewSource(*seed))

	runtime.GOMAXPROCS(*nThreads)

	effectiveNThreads := runtime.GOMAXPROCS(0)
	log.Infof("Using threads: %d.", effectiveNThreads)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	var db *bolt.DB
	if *checkpointF != "" {
		db, err = bolt.Open(*checkpointF, 0666, &bolt.Options{Timeout: 1 * time.Second})
		if err != nil {
			log.Fatal("Error opening checkpoint database:", err)
		}
		defer db.Close()
	}

	summary := run(db, rnd)
	summary.NThreads = effectiveNThreads
	summary.Version = version
	summary.CommandLine = os.Args
	summary.Seed = *seed

	// output summary in json format
	if *jsonF != "" {
		j, err := json.Marshal(summary)
		if err != nil {
			log.Error(err)
		} else {
			log.Debug(string(j))
			f, err := os.Create(*jsonF)
			if err != nil {
				log.Error("Error creating json output file:", err)
			} else {
				f.Write(j)
				f.Close()
			}
		}
	}
}
