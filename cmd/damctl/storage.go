package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/damsdk/dam"
	"github.com/example/damsdk/models"
	"github.com/example/damsdk/storage"
)

// providerFlags selects the object store a command reads from or writes to
type providerFlags struct {
	provider string
	options  map[string]string
}

func addProviderFlags(cmd *cobra.Command) *providerFlags {
	p := &providerFlags{}
	cmd.Flags().StringVar(&p.provider, "provider", "", "Storage provider: local, s3 or gcs (default from configuration)")
	cmd.Flags().StringToStringVar(&p.options, "opt", nil, "Provider option as key=value, e.g. bucket=assets")
	return p
}

// open creates the provider. Flags override the configured storage settings;
// options are merged only when the provider is unchanged.
func (p *providerFlags) open(a *app) (storage.Provider, error) {
	cfg := a.settings.Storage
	options := map[string]string{}
	if p.provider != "" && p.provider != cfg.Provider {
		cfg.Provider = p.provider
	} else {
		for k, v := range cfg.Options {
			options[k] = v
		}
	}
	for k, v := range p.options {
		options[k] = v
	}
	cfg.Options = options

	provider, err := storage.NewFactory().CreateProvider(cfg.Provider, cfg.Options)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func closeProvider(p storage.Provider) {
	if c, ok := p.(io.Closer); ok {
		_ = c.Close()
	}
}

func newMirrorCmd(a *app) *cobra.Command {
	var key string
	var providers *providerFlags
	var transform *transformFlags

	cmd := &cobra.Command{
		Use:   "mirror <id>",
		Short: "Copy a file from the DAM into an object store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, err := providers.open(a)
			if err != nil {
				return err
			}
			defer closeProvider(dst)

			result, err := a.client.MirrorFile(cmd.Context(), args[0], dst, dam.MirrorOptions{
				Key:       key,
				Transform: transform.options(cmd),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"file":       viewFile(result.File),
				"object_id":  result.ObjectID,
				"bytes":      result.Bytes,
				"size_human": formatBytes(result.Bytes),
				"sha256":     result.SHA256,
			})
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Destination object key (default generated from the file name)")
	providers = addProviderFlags(cmd)
	transform = addTransformFlags(cmd)
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var (
		name         string
		folder       string
		prefix       bool
		removeSource bool
		providers    *providerFlags
	)

	cmd := &cobra.Command{
		Use:   "import <key>",
		Short: "Upload an object from an object store to the DAM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := providers.open(a)
			if err != nil {
				return err
			}
			defer closeProvider(src)

			opts := dam.ImportOptions{Name: name, RemoveSource: removeSource}
			if folder != "" {
				opts.Upload = &models.UploadOptions{FolderID: folder}
			}

			if prefix {
				if name != "" {
					return fmt.Errorf("--name cannot be combined with --prefix")
				}
				resp, err := a.client.ImportPrefix(cmd.Context(), src, args[0], opts)
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
			}

			file, err := a.client.ImportFile(cmd.Context(), src, args[0], opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, viewFile(file))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Filename used for the upload (default from object metadata)")
	cmd.Flags().StringVar(&folder, "folder", "", "Folder ID")
	cmd.Flags().BoolVar(&prefix, "prefix", false, "Import every object whose key starts with <key>")
	cmd.Flags().BoolVar(&removeSource, "remove-source", false, "Delete imported objects from the store")
	providers = addProviderFlags(cmd)
	return cmd
}
