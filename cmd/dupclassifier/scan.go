package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-billy/v6/util"
	"github.com/lewtec/dupclassifier/classifier"
	"github.com/spf13/cobra"
)

type scannedFrame struct {
	name string
	data []byte
	mime classifier.MimeType
}

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan dir",
	Short: "Run the detector over the frames of a directory",
	Long: `Run the detector over the frames of a directory in lexical order and print
the verdict of each one. Frames reported as different can be copied to another
directory, named by their hash.

Example:
  dupclassifier scan ./frames --copy-to ./changes --width 1280 --height 720`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		width, _ := cmd.Flags().GetInt("width")
		height, _ := cmd.Flags().GetInt("height")
		copyTo, _ := cmd.Flags().GetString("copy-to")
		jobs, _ := cmd.Flags().GetUint("jobs")
		if width <= 0 || height <= 0 {
			return fmt.Errorf("%w: invalid reference size %dx%d", classifier.ErrConfiguration, width, height)
		}

		detector := classifier.NewDetector()
		if err := detector.Configure(threshold, classifier.BlankImage(width, height)); err != nil {
			return err
		}

		input := osfs.New(args[0])
		names, err := listFrames(input)
		if err != nil {
			return err
		}

		var (
			output billy.Filesystem
			queue  chan scannedFrame
			wg     sync.WaitGroup
		)
		if copyTo != "" {
			if err := os.MkdirAll(copyTo, 0777); err != nil {
				return err
			}
			output = osfs.New(copyTo)
			queue = make(chan scannedFrame, 10)
			if jobs == 0 {
				jobs = 1
			}
			for i := uint(0); i < jobs; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for frame := range queue {
						if err := copyFrame(output, frame); err != nil {
							log.Error("failed to copy frame", "frame", frame.name, "error", err)
						}
					}
				}()
			}
		}

		out := cmd.OutOrStdout()
		var different, unchanged, failed int
		for _, name := range names {
			data, err := readFrame(input, name)
			if err != nil {
				return fmt.Errorf("failed to read '%s': %w", name, err)
			}
			mime := classifier.DetectMimeType(data)
			result, err := detector.Evaluate(classifier.Encoded{Data: data, MimeType: mime})
			if err != nil {
				failed++
				fmt.Fprintf(out, "%s\terror\t%v\n", name, err)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\t%.4f\n", name, result.Verdict, result.Difference)
			if result.Verdict != classifier.Different {
				unchanged++
				continue
			}
			different++
			if queue != nil {
				queue <- scannedFrame{name: name, data: data, mime: mime}
			}
		}
		if queue != nil {
			close(queue)
			wg.Wait()
		}

		log.Info("scan finished",
			"frames", len(names),
			"different", different,
			"unchanged", unchanged,
			"failed", failed,
		)
		return nil
	},
}

func listFrames(fs billy.Filesystem) ([]string, error) {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func readFrame(fs billy.Filesystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// copyFrame stores frame as <sha256 of the file><ext>, so repeated scans
// don't duplicate files.
func copyFrame(fs billy.Filesystem, frame scannedFrame) error {
	name := classifier.HashBytes(frame.data) + frame.mime.Extension()
	if _, err := fs.Stat(name); err == nil {
		return nil
	}
	return util.WriteFile(fs, name, frame.data, 0644)
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Float64P("threshold", "t", classifier.DefaultThreshold, "Threshold on the 0-255 scale")
	scanCmd.Flags().Int("width", classifier.DefaultWidth, "Width of the initial black reference")
	scanCmd.Flags().Int("height", classifier.DefaultHeight, "Height of the initial black reference")
	scanCmd.Flags().StringP("copy-to", "o", "", "Copy frames reported as different to this directory")
	scanCmd.Flags().UintP("jobs", "j", 1, "Amount of concurrent copiers")
}
