package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/nanovms/docker2eif/builder"
	"github.com/nanovms/docker2eif/docker"
	"github.com/nanovms/docker2eif/eif"
	"github.com/nanovms/docker2eif/linuxkit"
	"github.com/nanovms/docker2eif/log"
	"github.com/nanovms/docker2eif/tools"
	"github.com/nanovms/docker2eif/types"
	"github.com/nanovms/docker2eif/util"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// BuildCommand builds an EIF image from a docker image
func BuildCommand() *cobra.Command {
	var cmdBuild = &cobra.Command{
		Use:   "build",
		Short: "Build an EIF image from a docker image",
		Example: "  docker2eif build -t hello-enclave -i init -k bzImage -c \"console=ttyS0\" -o hello.eif\n" +
			"  docker2eif build -b ./app -i init -k bzImage -c \"console=ttyS0\" -o app.eif",
		Args: cobra.NoArgs,
		Run:  buildCommandHandler,
	}

	persistentFlags := cmdBuild.PersistentFlags()

	PersistConfigCommandFlags(persistentFlags)
	PersistBuildImageCommandFlags(persistentFlags)

	return cmdBuild
}

func buildCommandHandler(cmd *cobra.Command, args []string) {
	flags := cmd.Flags()

	configFlags := NewConfigCommandFlags(flags)
	globalFlags := NewGlobalCommandFlags(flags)
	buildImageFlags := NewBuildImageCommandFlags(flags)

	c := types.NewConfig()

	mergeConfigContainer := NewMergeConfigContainer(configFlags, globalFlags, buildImageFlags)
	if err := mergeConfigContainer.Merge(c); err != nil {
		exitWithError(err.Error())
	}
	log.InitDefault(os.Stdout, c)

	fs := afero.NewOsFs()
	bc, err := types.NewBuildConfig(c, fs)
	if err != nil {
		exitForCmd(cmd, err.Error())
	}
	log.Debug("%s", bc)

	cli, err := docker.NewClient()
	if err != nil {
		exitWithBuildError(types.NewResolutionError(bc.Image().String(), "cannot connect to docker", err))
	}
	defer cli.Close()

	res, err := runBuild(context.Background(), c, bc, cli, newInvoker(c, os.Stderr), fs, os.Stdout)
	if err != nil {
		exitWithBuildError(err)
	}

	printBuildResult(os.Stdout, c, res)
}

// newInvoker returns the invoker external tools run through. Under
// --show-debug their stderr is streamed to debugOut as it is produced.
func newInvoker(c *types.Config, debugOut io.Writer) *tools.ExecInvoker {
	inv := tools.NewExecInvoker("")
	if c.RunConfig.ShowDebug {
		inv.Stderr = debugOut
	}
	return inv
}

// runBuild wires the docker resolver and the linuxkit assembler into a
// builder and runs it. Progress goes to out unless json output is asked
// for, in which case it goes to stderr.
func runBuild(ctx context.Context, c *types.Config, bc *types.BuildConfig, client docker.Client, inv tools.Invoker, fs afero.Fs, out io.Writer) (*builder.Result, error) {
	progressOut := out
	if c.RunConfig.JSON {
		progressOut = os.Stderr
	}

	resolver := docker.NewResolver(client,
		docker.WithFs(fs),
		docker.WithOutput(progressOut),
		docker.WithLogger(log.Default()),
	)
	assembler := linuxkit.NewAssembler(inv, fs, linuxkit.WithLogger(log.Default()))

	opts := []builder.Option{
		builder.WithFs(fs),
		builder.WithLogger(log.Default()),
	}

	if !c.RunConfig.JSON && !c.RunConfig.ShowDebug {
		spinner := util.NewProgressSpinner(progressOut)
		opts = append(opts,
			builder.WithStageHook(func(from, to builder.Stage) {
				switch {
				case to == builder.StageAssembling:
					spinner.Start("assembling boot ramdisk")
				case from == builder.StageAssembling && to == builder.StageFailed:
					spinner.Fail()
				case from == builder.StageAssembling:
					spinner.Done()
				}
			}),
			builder.WithProgress(func(size int64) io.Writer {
				return progressbar.NewOptions64(size,
					progressbar.OptionSetWriter(progressOut),
					progressbar.OptionShowBytes(true),
					progressbar.OptionSetDescription("writing "+filepath.Base(bc.Output())),
					progressbar.OptionOnCompletion(func() {
						fmt.Fprintln(progressOut)
					}),
				)
			}),
		)
	}

	return builder.New(bc, resolver, assembler, opts...).Run(ctx)
}

type buildSummary struct {
	Output       string            `json:"output"`
	Size         int64             `json:"size"`
	Image        string            `json:"image"`
	ImageID      string            `json:"image_id"`
	Measurements *eif.Measurements `json:"measurements"`
}

func printBuildResult(w io.Writer, c *types.Config, res *builder.Result) {
	if c.RunConfig.JSON {
		printJSON(w, buildSummary{
			Output:       res.Output,
			Size:         res.Size,
			Image:        res.Image.Reference,
			ImageID:      res.Image.ID.String(),
			Measurements: res.Measurements,
		})
		return
	}

	fmt.Fprintf(w, "EIF image file: %s (%s)\n", res.Output, humanize.IBytes(uint64(res.Size)))
	printMeasurements(w, res.Measurements)
}

func printMeasurements(w io.Writer, m *eif.Measurements) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Section", "Digest"})
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor})
	table.SetRowLine(true)

	for _, s := range m.Sections {
		table.Append([]string{s.Type.String(), s.Digest.String()})
	}
	table.Append([]string{"image", m.Image.String()})

	table.Render()
}
