package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roadsight/signtrack/logging"
	"github.com/roadsight/signtrack/model"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Manage detector and classifier models",
	}

	modelsCmd.AddCommand(newModelsListCommand(ctx))
	modelsCmd.AddCommand(newModelsDeleteCommand(ctx))

	return modelsCmd
}

func newModelsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List models in the models directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			svc := model.NewService(cfg.Paths.ModelsDir, logging.Discard())
			infos, err := svc.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintf(out, "No models found in %s\n", svc.Dir())
				return nil
			}

			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					info.Name,
					humanize.Bytes(uint64(info.Size)),
					info.MD5,
					humanize.Time(info.ModTime),
					modelRole(info.Name, cfg.Detection.ModelName, cfg.Classifier.ModelName),
				})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Size", "MD5", "Modified", "Role"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newModelsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			name := strings.TrimSpace(args[0])
			if role := modelRole(name, cfg.Detection.ModelName, cfg.Classifier.ModelName); role != "" {
				return fmt.Errorf("%w: %s is the configured %s model", model.ErrInUse, name, role)
			}

			svc := model.NewService(cfg.Paths.ModelsDir, logging.Discard())
			if err := svc.Delete(name); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", name)
			return nil
		},
	}
}

// modelRole returns which configured model name refers to, ignoring the
// file extension
func modelRole(name, detector, classifier string) string {
	base := strings.TrimSuffix(filepath.Base(name), model.Extension)
	switch base {
	case strings.TrimSuffix(detector, model.Extension):
		return "detector"
	case strings.TrimSuffix(classifier, model.Extension):
		return "classifier"
	default:
		return ""
	}
}
