// ecgnet_classify runs a trained model over a directory of recording pairs
// and writes one prediction file per recording.
//
// Usage:
//
//	ecgnet_classify [flags] <model_dir> <input_dir> <output_dir>
//
// For every <record>.hea/<record>.mat pair under input_dir it writes
// <output_dir>/<record>.csv in the challenge submission format. A recording
// that cannot be read or classified aborts the run.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/ecgml/ecgnet/classifier"

	_ "github.com/gomlx/gomlx/backends/default"
)

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [flags] <model_dir> <input_dir> <output_dir>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 3 {
		flag.Usage()
		os.Exit(2)
	}
	modelDir, inputDir, outputDir := flag.Arg(0), flag.Arg(1), flag.Arg(2)

	c, err := classifier.New(modelDir)
	if err != nil {
		klog.Exitf("Loading model from %q: %+v", modelDir, err)
	}
	must.M(os.MkdirAll(outputDir, 0777))

	headerPaths := listHeaders(inputDir)
	if len(headerPaths) == 0 {
		klog.Exitf("No recording headers (*.hea) under %q", inputDir)
	}
	for _, headerPath := range headerPaths {
		pred, err := c.ClassifyFile(headerPath)
		if err != nil {
			klog.Exitf("Classifying %q: %+v", headerPath, err)
		}
		outPath := filepath.Join(outputDir,
			strings.TrimSuffix(filepath.Base(headerPath), ".hea")+".csv")
		if err = writePrediction(outPath, pred); err != nil {
			klog.Exitf("Writing %q: %+v", outPath, err)
		}
	}
	fmt.Printf("Classified %d recordings into %q\n", len(headerPaths), outputDir)
}

func listHeaders(inputDir string) []string {
	entries := must.M1(os.ReadDir(inputDir))
	var headerPaths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".hea") {
			continue
		}
		headerPaths = append(headerPaths, filepath.Join(inputDir, entry.Name()))
	}
	sort.Strings(headerPaths)
	return headerPaths
}

func writePrediction(path string, pred *classifier.Prediction) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = classifier.WriteChallengeOutput(f, pred); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
