package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/datasociety/hub/pkg/hub/catalog"
	"github.com/datasociety/hub/pkg/hub/importexport"
	"github.com/datasociety/hub/pkg/hub/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var importAuthor string

// importCmd loads a bundle file, e.g. the site's seed resources
var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load a resource bundle file into the catalog",
	Long: `Load a JSON bundle into the catalog.

The file is either an array of resources or an object with a "resources"
array, in the same shape GET /api/admin/export?format=bundle produces.
Resources are attributed to --author, which defaults to the bootstrap admin.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importAuthor, "author", "", "email of the account the resources are attributed to")
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	items, err := importexport.ReadBundle(f)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	e, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.closer()

	email := importAuthor
	if email == "" {
		email = e.cfg.Admin.Email
	}
	var author models.User
	if err := e.db.WithContext(ctx).Where("email = ?", email).First(&author).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("no account with email %q", email)
		}
		return err
	}

	writer := catalog.NewWriter(e.db, e.cache, e.logger.Named("catalog"))
	result := importexport.ImportBundle(ctx, writer, items, author.ID, e.logger.Named("import"))

	e.logger.Info("catalog import finished",
		zap.String("file", args[0]),
		zap.String("author", email),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)
	for _, msg := range result.Errors {
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	}
	if result.Skipped > 0 {
		return fmt.Errorf("%d of %d resources skipped", result.Skipped, len(items))
	}
	return nil
}
