package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/aliskhannn/image-converter/internal/download"
	"github.com/aliskhannn/image-converter/internal/model"
	"github.com/aliskhannn/image-converter/internal/processor"
	"github.com/aliskhannn/image-converter/internal/queue"
	"github.com/aliskhannn/image-converter/internal/storage/local"
	"github.com/aliskhannn/image-converter/internal/validator"
)

type convertOptions struct {
	to          string
	quality     float64
	maxWidth    int
	maxHeight   int
	keepAspect  bool
	outDir      string
	zip         bool
	maxFileSize int64
	pdfDPI      float64
}

func newConvertCommand() *cobra.Command {
	opts := convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <file>...",
		Short: "Convert image files into another format",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.to, "to", "t", "", "Target format (png, jpeg, webp, gif, bmp, tiff, pdf)")
	flags.Float64VarP(&opts.quality, "quality", "q", model.DefaultQuality, "Encoder quality between 0 and 1 for JPEG and WebP")
	flags.IntVar(&opts.maxWidth, "max-width", 0, "Downscale wider images to this width")
	flags.IntVar(&opts.maxHeight, "max-height", 0, "Downscale taller images to this height")
	flags.BoolVar(&opts.keepAspect, "keep-aspect", true, "Keep the aspect ratio when downscaling")
	flags.StringVarP(&opts.outDir, "out", "o", ".", "Directory converted files are written to")
	flags.BoolVar(&opts.zip, "zip", false, "Write a single zip archive instead of separate files")
	flags.Int64Var(&opts.maxFileSize, "max-size", validator.DefaultMaxFileSize, "Largest accepted input in bytes")
	flags.Float64Var(&opts.pdfDPI, "pdf-dpi", processor.DefaultPDFDPI, "Resolution PDF pages are rendered at")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runConvert(cmd *cobra.Command, paths []string, opts convertOptions) error {
	target, ok := model.ParseFormat(opts.to)
	if !ok || !target.IsTarget() {
		return fmt.Errorf("unsupported target format %q", opts.to)
	}

	settings := model.Settings{
		Quality:             opts.quality,
		Format:              target,
		MaintainAspectRatio: opts.keepAspect,
		MaxWidth:            opts.maxWidth,
		MaxHeight:           opts.maxHeight,
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	workDir, err := os.MkdirTemp("", "imgconv-")
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	v := validator.New(opts.maxFileSize)
	m := queue.NewManager(processor.New(opts.pdfDPI), v, local.NewStorage(workDir), "cli")
	m.SetProgressInterval(0)

	sources := make([]model.Source, 0, len(paths))
	for _, p := range paths {
		src, err := readSource(p, v.MaxSize())
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	stderr := cmd.ErrOrStderr()

	_, rejected := m.AddFiles(cmd.Context(), sources, target)
	for _, r := range rejected {
		fmt.Fprintf(stderr, "skipped: %v\n", r)
	}

	res, err := m.ConvertAll(cmd.Context(), settings)
	records := m.Records()

	var written []string
	if err == nil {
		written, err = writeOutputs(opts, records)
	}

	// revoke stored copies even when writing failed
	if cerr := m.Clear(context.WithoutCancel(cmd.Context())); cerr != nil {
		err = errors.Join(err, fmt.Errorf("clean up converted files: %w", cerr))
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Source", "Status", "Output", "Size", "Error"},
		resultRows(records),
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	for _, w := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", w)
	}

	if err := cmd.Context().Err(); err != nil {
		return err
	}
	if res.HasFailures() {
		return fmt.Errorf("%d of %d files failed", res.Failed, res.Total())
	}
	if res.Converted == 0 {
		return errors.New("nothing was converted")
	}
	return nil
}

// readSource loads a file from disk. Files over maxSize are not read; the
// validator rejects them from their size alone.
func readSource(p string, maxSize int64) (model.Source, error) {
	info, err := os.Stat(p)
	if err != nil {
		return model.Source{}, fmt.Errorf("inspect %s: %w", p, err)
	}
	if info.IsDir() {
		return model.Source{}, fmt.Errorf("%s is a directory", p)
	}

	name := filepath.Base(p)
	declared := ""
	if f, ok := model.FormatFromName(name); ok {
		declared = f.MIMEType()
	} else if mt, err := mimetype.DetectFile(p); err == nil {
		declared = mt.String()
	}

	if info.Size() > maxSize {
		return model.Source{Name: name, MIMEType: declared, Size: info.Size()}, nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return model.Source{}, fmt.Errorf("read %s: %w", p, err)
	}

	return model.NewSource(name, declared, data), nil
}

func writeOutputs(opts convertOptions, records []model.Record) ([]string, error) {
	if opts.zip {
		if len(download.Completed(records)) == 0 {
			return nil, nil
		}

		name := filepath.Join(opts.outDir, download.ArchiveName(time.Now()))
		f, err := os.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create archive: %w", err)
		}

		if err := writeArchive(f, records); err != nil {
			return nil, err
		}
		return []string{name}, nil
	}

	var written []string
	for _, rec := range records {
		file, err := download.One(rec)
		if err != nil {
			continue
		}

		name := filepath.Join(opts.outDir, file.Name)
		if err := os.WriteFile(name, file.Data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}

// writeArchive zips the completed records into w and closes it. A failed
// close means the archive was not fully flushed and is reported.
func writeArchive(w io.WriteCloser, records []model.Record) error {
	if _, err := download.All(w, records); err != nil {
		_ = w.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func resultRows(records []model.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		output, size := "", ""
		if rec.Blob != nil {
			output = rec.OutputFileName
			size = humanize.IBytes(uint64(rec.Blob.Size()))
		}
		rows = append(rows, []string{rec.Original.Name, rec.Status.String(), output, size, rec.Error})
	}
	return rows
}
