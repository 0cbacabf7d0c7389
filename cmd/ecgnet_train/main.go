// ecgnet_train trains an ECG classifier on a directory of recording pairs
// and writes a model directory usable by ecgnet_classify.
//
// Usage:
//
//	ecgnet_train [flags] <data_dir> <model_dir>
//
// Hyperparameters are set with --set, e.g.:
//
//	ecgnet_train --set="train_steps=5000;batch_size=64" data/training models/run1
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/ecgml/ecgnet"

	_ "github.com/gomlx/gomlx/backends/default"
)

func main() {
	ctx := ecgnet.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [flags] <data_dir> <model_dir>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	dataDir, modelDir := flag.Arg(0), flag.Arg(1)
	_ = must.M1(commandline.ParseContextSettings(ctx, *settings))
	klog.V(2).Info(commandline.SprintContextSettings(ctx))

	if err := ecgnet.TrainModel(ctx, dataDir, modelDir); err != nil {
		klog.Exitf("Training failed: %+v", err)
	}
}
