package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-analyzer/internal/app"
	"github.com/dvloznov/finance-analyzer/internal/gcs"
)

func runUpload(log zerolog.Logger, f *app.Factory, args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", f.Config().Bucket, "GCS bucket name (defaults to GCS_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to uploads/YYYY/MM/DD/filename)")
	filePath := fs.String("file", "", "Path to local file")
	fs.Parse(args)

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}
	if *objectName == "" {
		*objectName = gcs.ObjectName("uploads", *filePath, time.Now())
	}

	ctx := commandContext(log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	storage, err := f.Storage(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	uri, err := storage.UploadFile(ctx, *bucketName, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func runDocuments(log zerolog.Logger, f *app.Factory, args []string) {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	fs.Parse(args)

	ctx := commandContext(log)
	repo, err := f.Repository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}

	docs, err := repo.ListAllDocuments(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list documents")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tUPLOADED\tFILE")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			d.DocumentID, d.DocumentType, d.ParsingStatus, d.UploadTS.Format(time.DateTime), d.OriginalFilename)
	}
	w.Flush()
}

func runDelete(log zerolog.Logger, f *app.Factory, args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	documentID := fs.String("document-id", "", "Document ID to delete")
	fs.Parse(args)

	if *documentID == "" {
		log.Fatal().Msg("Error: -document-id is required")
	}

	ctx := commandContext(log)
	repo, err := f.Repository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}

	if err := repo.DeleteDocument(ctx, *documentID); err != nil {
		log.Fatal().Err(err).Msg("Delete failed")
	}
	fmt.Printf("Deleted document %s.\n", *documentID)
}
