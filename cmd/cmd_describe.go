package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/nanovms/docker2eif/eif"
	"github.com/nanovms/docker2eif/log"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/ttacon/chalk"
)

// DescribeCommand verifies an EIF image and prints its layout and measurements
func DescribeCommand() *cobra.Command {
	var cmdDescribe = &cobra.Command{
		Use:   "describe [EIF file]",
		Short: "Verify an EIF image and print its sections and measurements",
		Args:  cobra.ExactArgs(1),
		Run:   describeCommandHandler,
	}

	return cmdDescribe
}

func describeCommandHandler(cmd *cobra.Command, args []string) {
	globalFlags := NewGlobalCommandFlags(cmd.Flags())

	log.Info("verifying %s", args[0])
	d, err := describeImage(afero.NewOsFs(), args[0])
	if d != nil {
		if globalFlags.JSON {
			printJSON(os.Stdout, d)
		} else {
			printDescription(os.Stdout, d)
		}
	}
	if err != nil {
		exitWithError(err.Error())
	}
}

// Description is what describe reports about an EIF image
type Description struct {
	File         string            `json:"file"`
	Size         int64             `json:"size"`
	Version      uint16            `json:"version"`
	Arch         string            `json:"arch"`
	MemoryMiB    uint64            `json:"memory_mib"`
	CPUs         uint64            `json:"cpus"`
	Sections     []eif.SectionInfo `json:"sections"`
	Measurements *eif.Measurements `json:"measurements"`
	Metadata     *eif.Metadata     `json:"metadata,omitempty"`
	Verified     bool              `json:"verified"`
	Error        string            `json:"error,omitempty"`
}

// describeImage parses and verifies the image at path. A description is
// returned along with the error when the layout is readable but the
// contents fail verification.
func describeImage(fs afero.Fs, path string) (*Description, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	img, err := eif.Open(f, info.Size())
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	d := &Description{
		File:         path,
		Size:         img.Size(),
		Version:      img.Header.Version,
		Arch:         img.Header.Arch(),
		MemoryMiB:    img.Header.DefaultMemory,
		CPUs:         img.Header.DefaultCPUs,
		Sections:     img.Sections(),
		Measurements: img.Measurements,
	}

	if meta, err := img.Metadata(); err != nil {
		log.Warn("cannot decode metadata section: %v", err)
	} else {
		d.Metadata = meta
	}

	if err := img.Verify(); err != nil {
		d.Error = err.Error()
		return d, errors.Wrap(err, path)
	}
	d.Verified = true

	return d, nil
}

func printDescription(w io.Writer, d *Description) {
	fmt.Fprintf(w, "File:    %s (%s)\n", d.File, humanize.IBytes(uint64(d.Size)))
	fmt.Fprintf(w, "Version: %d\n", d.Version)
	fmt.Fprintf(w, "Arch:    %s\n", d.Arch)
	fmt.Fprintf(w, "Memory:  %d MiB\n", d.MemoryMiB)
	fmt.Fprintf(w, "CPUs:    %d\n", d.CPUs)
	if d.Metadata != nil {
		fmt.Fprintf(w, "Image:   %s:%s (%s)\n", d.Metadata.ImageName, d.Metadata.ImageVersion, d.Metadata.ImageID)
		fmt.Fprintf(w, "Cmdline: %s\n", d.Metadata.Cmdline)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Section", "Offset", "Size", "Digest"})
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor})
	table.SetRowLine(true)

	for _, s := range d.Sections {
		table.Append([]string{
			strconv.Itoa(s.Index),
			s.Type.String(),
			strconv.FormatUint(s.Offset, 10),
			humanize.IBytes(s.Size),
			s.Digest.String(),
		})
	}
	table.Render()

	fmt.Fprintf(w, "Image measurement: %s\n", d.Measurements.Image)
	if d.Verified {
		fmt.Fprintf(w, "Verified: %s\n", chalk.Green.Color("yes"))
	} else {
		fmt.Fprintf(w, "Verified: %s (%s)\n", chalk.Red.Color("no"), d.Error)
	}
}
