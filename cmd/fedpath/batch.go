package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fpang/fedpath/internal/batch"
	"github.com/fpang/fedpath/internal/cli"
	"github.com/fpang/fedpath/internal/lambdaboot"
	"github.com/fpang/fedpath/internal/report"
	"github.com/fpang/fedpath/internal/s3util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Batch flags
var (
	outFlag      string
	pacingFlag   time.Duration
	s3BucketFlag string
	s3PrefixFlag string
)

const presignExpiry = 24 * time.Hour

var batchCmd = &cobra.Command{
	Use:   "batch <archive.zip | s3://bucket/key.zip>",
	Short: "Classify every image in a ZIP archive and export a CSV ledger",
	Long: `Batch decodes a ZIP archive, keeps the supported image entries in archive
order, and classifies them one at a time with a pause between requests.
A failed image is recorded as failed and the run continues.

Examples:
  fedpath batch slides.zip
  fedpath batch slides.zip --out ledger.csv --pacing 1s
  fedpath batch s3://inbox/slides.zip --s3-bucket fedpath-reports`,
	Args: cobra.ExactArgs(1),
	Run:  runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Write the CSV ledger to this path (default: stdout)")
	batchCmd.Flags().DurationVar(&pacingFlag, "pacing", 0, "Pause between images (default: $FEDPATH_BATCH_PACING)")
	batchCmd.Flags().StringVar(&s3BucketFlag, "s3-bucket", "", "Also upload the CSV ledger to this bucket (default: $FEDPATH_REPORT_BUCKET)")
	batchCmd.Flags().StringVar(&s3PrefixFlag, "s3-prefix", "batch", "Key prefix for uploaded ledgers")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := mustSetup(ctx)

	bucket := s3BucketFlag
	if bucket == "" {
		bucket = st.cfg.Server.ReportBucket
	}
	var (
		s3Client *s3.Client
		exporter *lambdaboot.S3Clients
	)
	srcBucket, srcKey, fromS3 := s3util.ParseURI(args[0])
	if fromS3 || bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load AWS config")
		}
		s3Client = s3.NewFromConfig(awsCfg)
		exporter = lambdaboot.InitS3Optional(awsCfg, bucket)
	}

	var blob []byte
	if fromS3 {
		data, err := s3util.Download(ctx, s3Client, srcBucket, srcKey, st.cfg.Server.MaxUploadBytes)
		if err != nil {
			log.Fatal().Err(err).Str("uri", args[0]).Msg("Failed to download archive")
		}
		blob = data
	} else {
		data, err := os.ReadFile(cli.ValidateAndResolveFile(args[0]))
		if err != nil {
			log.Fatal().Err(err).Str("path", args[0]).Msg("Failed to read archive")
		}
		blob = data
	}

	pipeline := batch.NewPipeline(st.predictor)
	pipeline.Pacing = st.cfg.Server.BatchPacing
	if pacingFlag > 0 {
		pipeline.Pacing = pacingFlag
	}

	start := time.Now()
	results, err := pipeline.Run(ctx, blob, st.settings, func(pct int) {
		fmt.Fprintf(os.Stderr, "\r  Progress: %3d%%  elapsed %s", pct, cli.FormatDurationShort(time.Since(start)))
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("Batch run failed")
	}

	sum := batch.Summarize(results)
	fmt.Fprintf(os.Stderr, "  %d images: %d positive, %d benign, %d failed (%s)\n",
		sum.Total, sum.Positive, sum.Benign, sum.Failed, cli.FormatDurationShort(time.Since(start)))

	var csvBuf bytes.Buffer
	if err := report.WriteBatchCSV(&csvBuf, results); err != nil {
		log.Fatal().Err(err).Msg("Failed to render CSV ledger")
	}

	if outFlag == "" {
		os.Stdout.Write(csvBuf.Bytes())
	} else {
		writeFile(outFlag, csvBuf.Bytes())
	}

	if exporter != nil {
		now := time.Now()
		key := s3util.ReportKey(s3PrefixFlag, report.BatchCSVName(now), now)
		if err := s3util.UploadReport(ctx, exporter.Client, exporter.Bucket, key, report.ContentTypeCSV, csvBuf.Bytes()); err != nil {
			log.Fatal().Err(err).Msg("Failed to upload CSV ledger")
		}
		url, err := s3util.GeneratePresignedURL(ctx, exporter.Presigner, exporter.Bucket, key, presignExpiry)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to presign ledger URL")
			return
		}
		fmt.Fprintf(os.Stderr, "  Ledger: %s\n", url)
	}
}
