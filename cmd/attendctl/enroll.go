package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/vision"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Import reference descriptors for a subject",
	Long: `Import reference descriptors for a subject. Descriptors come either from a
JSON file holding an array of arrays, or are computed from face photos.

Example:
  attendctl enroll --subject S1 --name "Ada Lovelace" --descriptor-file ada.json
  attendctl enroll --subject S1 --name "Ada Lovelace" --image ada1.jpg --image ada2.jpg`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("subject", "", "Subject ID")
	enrollCmd.Flags().String("name", "", "Display name")
	enrollCmd.Flags().String("descriptor-file", "", "JSON file with an array of descriptors ('-' for stdin)")
	enrollCmd.Flags().StringSlice("image", nil, "Face photo to compute a descriptor from (repeatable)")
	_ = enrollCmd.MarkFlagRequired("subject")
	_ = enrollCmd.MarkFlagRequired("name")
	enrollCmd.MarkFlagsOneRequired("descriptor-file", "image")
	enrollCmd.MarkFlagsMutuallyExclusive("descriptor-file", "image")
}

func runEnroll(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	subjectID := mustGetString(cmd, "subject")
	name := mustGetString(cmd, "name")

	var refs []models.Descriptor
	if path := mustGetString(cmd, "descriptor-file"); path != "" {
		refs, err = readDescriptorFile(path, cmd.InOrStdin())
	} else {
		images, _ := cmd.Flags().GetStringSlice("image")
		refs, err = embedImages(cfg.Vision.ONNXLib, images, func() (imageEmbedder, error) {
			return vision.NewExtractor(cfg.Vision)
		})
	}
	if err != nil {
		return err
	}
	if err := checkDescriptors(refs, cfg.Vision.DescriptorDim); err != nil {
		return err
	}

	db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.AddReferences(cmd.Context(), subjectID, name, refs); err != nil {
		return fmt.Errorf("failed to store references: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Enrolled %s (%s) with %d reference descriptors\n", subjectID, name, len(refs))
	return nil
}

func readDescriptorFile(path string, stdin io.Reader) ([]models.Descriptor, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open descriptor file: %w", err)
		}
		defer f.Close()
		r = f
	}
	return parseDescriptors(r)
}

func parseDescriptors(r io.Reader) ([]models.Descriptor, error) {
	var refs []models.Descriptor
	if err := json.NewDecoder(r).Decode(&refs); err != nil {
		return nil, fmt.Errorf("failed to parse descriptors: %w", err)
	}
	return refs, nil
}

// checkDescriptors rejects empty input and descriptors of the wrong length,
// which would otherwise be skipped as anomalies at match time.
func checkDescriptors(refs []models.Descriptor, dim int) error {
	if len(refs) == 0 {
		return fmt.Errorf("no descriptors to enroll")
	}
	for i, d := range refs {
		if dim > 0 && len(d) != dim {
			return fmt.Errorf("descriptor %d has %d values, want %d", i, len(d), dim)
		}
	}
	return nil
}

type imageEmbedder interface {
	EmbedImage(data []byte) (models.Descriptor, float32, error)
	Close()
}

func embedImages(libPath string, paths []string, open func() (imageEmbedder, error)) ([]models.Descriptor, error) {
	destroy, err := vision.InitRuntime(libPath)
	if err != nil {
		return nil, err
	}
	defer destroy()

	emb, err := open()
	if err != nil {
		return nil, err
	}
	defer emb.Close()

	refs := make([]models.Descriptor, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		d, score, err := emb.EmbedImage(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		fmt.Fprintf(os.Stderr, "%s: face found (score %.2f)\n", p, score)
		refs = append(refs, d)
	}
	return refs, nil
}
