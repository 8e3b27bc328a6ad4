package cli

import (
	"io"

	"github.com/alecthomas/kong"

	"github.com/SychAndrii/infusion/internal/llmmodel"
)

// Invocation is the complete command line, parsed up front before any
// validation or processing begins. Nothing downstream re-reads os.Args.
type Invocation struct {
	Files []string `arg:"" optional:"" name:"file" help:"Source files to document."`

	Model      string `short:"m" placeholder:"ID" help:"Model that writes the documentation (default: ${default_model})."`
	Output     string `short:"o" placeholder:"DIR" help:"Write documented files into DIR instead of printing them."`
	Stream     bool   `help:"Print the documented text as the model produces it. Conflicts with --output."`
	TokenUsage bool   `name:"token-usage" help:"Report token usage for each file (batch mode only)."`
	Verbose    bool   `help:"Enable debug logging."`
	Version    bool   `short:"v" help:"Print version and exit."`
}

// parseArgs parses argv (without the program name). helped reports that kong
// already printed help in response to -h/--help; the run is over in that
// case.
func parseArgs(argv []string, out, errW io.Writer) (inv *Invocation, helped bool, err error) {
	inv = &Invocation{}
	parser, err := kong.New(inv,
		kong.Name("infusion"),
		kong.Description("Augment source files with model-written documentation comments."),
		kong.Writers(out, errW),
		kong.Vars{"default_model": string(llmmodel.DefaultModel)},
		// Help must not end the process; Run owns the exit code.
		kong.Exit(func(int) { helped = true }),
	)
	if err != nil {
		return nil, false, err
	}
	if _, err := parser.Parse(argv); err != nil {
		if helped {
			return nil, true, nil
		}
		return nil, false, validationErrorf(KindUsage, "%s (run 'infusion --help' for usage)", err.Error())
	}
	return inv, helped, nil
}
