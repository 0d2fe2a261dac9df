package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/damsdk/dam"
	"github.com/example/damsdk/models"
)

func newUploadCmd(a *app) *cobra.Command {
	var (
		folder string
		name   string
		meta   map[string]string
	)

	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &models.UploadOptions{FolderID: folder, OriginalName: name}
			if len(meta) > 0 {
				opts.Metadata = make(map[string]any, len(meta))
				for k, v := range meta {
					opts.Metadata[k] = v
				}
			}

			if len(args) == 1 {
				file, err := a.client.UploadFile(cmd.Context(), dam.FromPath(args[0]), opts)
				if err != nil {
					return err
				}
				return printJSON(cmd, viewFile(file))
			}

			if name != "" {
				return fmt.Errorf("--name applies to single file uploads only")
			}
			srcs := make([]dam.Source, len(args))
			for i, path := range args {
				srcs[i] = dam.FromPath(path)
			}
			resp, err := a.client.UploadFiles(cmd.Context(), srcs, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"success": resp.Success,
				"message": resp.Message,
				"files":   viewFiles(resp.Files),
				"failed":  resp.Failed,
				"counts":  resp.Counts,
			})
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "Folder ID")
	cmd.Flags().StringVar(&name, "name", "", "Original name stored with the file")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "Metadata as key=value, repeatable")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var opts models.SearchOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client.ListFiles(cmd.Context(), &opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"files":      viewFiles(resp.Files),
				"pagination": resp.Pagination,
			})
		},
	}

	cmd.Flags().StringVar(&opts.FolderID, "folder", "", "Only files in this folder")
	cmd.Flags().StringVar(&opts.MimeType, "mime", "", "Only files of this MIME type")
	cmd.Flags().StringVar(&opts.Search, "search", "", "Search term")
	cmd.Flags().IntVar(&opts.Limit, "limit", models.DefaultSearchLimit, "Page size")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Page offset")
	cmd.Flags().StringVar(&opts.Sort, "sort", models.DefaultSearchSort, "Sort field")
	cmd.Flags().StringVar(&opts.Order, "order", models.DefaultSearchOrder, "Sort order, asc or desc")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := a.client.GetFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, viewFile(file))
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.client.DeleteFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"id": args[0], "deleted": ok})
		},
	}
}

func newBulkDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk-delete <id>...",
		Short: "Delete several files, requires a bearer token",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.client.BatchDeleteFiles(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(cmd, env)
		},
	}
}

// transformFlags binds the transform options to cmd
type transformFlags struct {
	opts models.TransformOptions
}

func addTransformFlags(cmd *cobra.Command) *transformFlags {
	t := &transformFlags{}
	f := cmd.Flags()
	f.IntVar(&t.opts.Width, "width", 0, "Output width")
	f.IntVar(&t.opts.Height, "height", 0, "Output height")
	f.StringVar(&t.opts.Fit, "fit", "", "Resize mode: cover, contain, fill, inside or outside")
	f.StringVar(&t.opts.Format, "format", "", "Output format: jpeg, png, webp, avif or gif")
	f.IntVar(&t.opts.Quality, "quality", 0, "Output quality 1-100")
	f.IntVar(&t.opts.Blur, "blur", 0, "Blur radius")
	f.BoolVar(&t.opts.Grayscale, "grayscale", false, "Convert to grayscale")
	f.IntVar(&t.opts.Rotate, "rotate", 0, "Rotation in degrees")
	return t
}

// options returns nil when no transform flag was given
func (t *transformFlags) options(cmd *cobra.Command) *models.TransformOptions {
	for _, name := range []string{"width", "height", "fit", "format", "quality", "blur", "grayscale", "rotate"} {
		if cmd.Flags().Changed(name) {
			opts := t.opts
			return &opts
		}
	}
	return nil
}

func newURLCmd(a *app) *cobra.Command {
	var transform *transformFlags

	cmd := &cobra.Command{
		Use:   "url <id>",
		Short: "Print the transform URL of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), a.client.FileURL(args[0], transform.options(cmd)))
			return err
		},
	}
	transform = addTransformFlags(cmd)
	return cmd
}

func newThumbnailCmd(a *app) *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "thumbnail <id>",
		Short: "Print the thumbnail URL of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), a.client.ThumbnailURL(args[0], size))
			return err
		},
	}
	cmd.Flags().IntVar(&size, "size", dam.DefaultThumbnailSize, "Thumbnail size in pixels")
	return cmd
}

func newDownloadCmd(a *app) *cobra.Command {
	var transform *transformFlags

	cmd := &cobra.Command{
		Use:   "download <id> <output>",
		Short: "Download a file, optionally transformed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.client.DownloadFile(cmd.Context(), args[0], args[1], transform.options(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"id": args[0], "path": path})
		},
	}
	transform = addTransformFlags(cmd)
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats <command>",
		Short: "Show statistics",
	}

	statsCmd.AddCommand(
		&cobra.Command{
			Use:   "dashboard",
			Short: "Show dashboard statistics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				stats, err := a.client.DashboardStats(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			},
		},
		&cobra.Command{
			Use:   "storage",
			Short: "Show storage statistics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				stats, err := a.client.StorageStats(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			},
		},
	)
	return statsCmd
}
