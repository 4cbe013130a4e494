package main

import (
	"github.com/spf13/cobra"

	"booksync/internal/config"
)

type pipelineFlags struct {
	preprocessors  []string
	matcher        string
	params         []float64
	postprocessors []string
	formatter      string
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVar(&f.preprocessors, "pre", nil, "Preprocessing stages in order (overrides config)")
	flags.StringVar(&f.matcher, "matcher", "", "Matcher: overlap, cosine or external")
	flags.Float64SliceVar(&f.params, "params", nil, "Matcher parameter vector, comma separated")
	flags.StringSliceVar(&f.postprocessors, "post", nil, "Postprocessing filters in order; pass --post= for none")
	flags.StringVar(&f.formatter, "formatter", "", "Formatter: json, store or stream")
}

// apply overlays the flags the user actually set onto base.
func (f *pipelineFlags) apply(cmd *cobra.Command, base config.Pipeline) config.Pipeline {
	p := base.Clone()
	flags := cmd.Flags()
	if flags.Changed("pre") {
		p.Preprocessors = append([]string{}, f.preprocessors...)
	}
	if flags.Changed("matcher") {
		p.Matcher = f.matcher
	}
	if flags.Changed("params") {
		p.Params = append([]float64(nil), f.params...)
	}
	if flags.Changed("post") {
		p.Postprocessors = append([]string{}, f.postprocessors...)
	}
	if flags.Changed("formatter") {
		p.Formatter = f.formatter
	}
	return p.Normalize()
}
