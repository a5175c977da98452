package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/lead-importer/internal/assign"
	"github.com/ignite/lead-importer/internal/config"
	"github.com/ignite/lead-importer/internal/importer"
	"github.com/ignite/lead-importer/internal/ingest"
	"github.com/ignite/lead-importer/internal/mapping"
)

// import-file runs the whole pipeline against a single file from the
// command line: auto-map the header, parse and validate, then commit.
// Local paths and s3://bucket/key URLs are both accepted.
func main() {
	var (
		configPath   = flag.String("config", "config/config.yaml", "config file path")
		filePath     = flag.String("file", "", "file to import (local path or s3://bucket/key)")
		delimiter    = flag.String("delimiter", "", "delimiter override for CSV (auto-detect when empty)")
		sheet        = flag.String("sheet", "", "worksheet name for XLSX (first sheet when empty)")
		strategy     = flag.String("strategy", "skip", "duplicate strategy: skip or update")
		assignMode   = flag.String("assign", "", "assignment mode: single, round_robin or by_column")
		assignUser   = flag.String("assign-user", "", "user id for single mode")
		assignPool   = flag.String("assign-pool", "", "comma-separated user ids for round_robin mode")
		assignColumn = flag.String("assign-column", "", "source column for by_column mode")
		startRow     = flag.Int("start-row", 0, "skip this many data rows (resume)")
		dryRun       = flag.Bool("dry-run", false, "parse and validate only, do not commit")
	)
	flag.Parse()

	if *filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	src, err := resolveSource(ctx, cfg, *filePath)
	if err != nil {
		log.Fatalf("Failed to resolve source: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer redisClient.Close()
	}

	mappings, err := autoMap(ctx, src, *sheet, parseDelim(*delimiter))
	if err != nil {
		log.Fatalf("Failed to map header: %v", err)
	}
	mapped := 0
	for _, m := range mappings {
		if m.TargetField != "" {
			log.Printf("[mapping] %-30s -> %-12s (%.2f)", m.SourceColumn, m.TargetField, m.Confidence)
			mapped++
		} else {
			log.Printf("[mapping] %-30s    unmapped     (%.2f)", m.SourceColumn, m.Confidence)
		}
	}
	if mapped == 0 {
		log.Fatal("No columns could be mapped; nothing to import")
	}

	svc := importer.NewService(db, redisClient, importer.Options{
		CommitPageSize: cfg.Import.CommitPageSize,
		DedupePageSize: cfg.Import.DedupePageSize,
	})

	job, err := svc.CreateJob(ctx, src.Name(), mappings)
	if err != nil {
		log.Fatalf("Failed to create job: %v", err)
	}
	log.Printf("[job] %s created for %s", job.ID, src.Name())

	parseRes, err := svc.RunParse(ctx, job.ID, src, mappings, ingest.ParseOptions{
		Delimiter: parseDelim(*delimiter),
		BatchSize: cfg.Import.BatchSize,
		StartRow:  *startRow,
		SheetName: *sheet,
	})
	if err != nil {
		log.Fatalf("Parse failed: %v", err)
	}
	log.Printf("[parse] %d rows: %d valid, %d invalid (%dms)",
		parseRes.TotalRows, parseRes.ValidRows, parseRes.InvalidRows, parseRes.ProcessingTimeMs)

	if *dryRun {
		log.Println("[done] dry run, skipping commit")
		return
	}

	opts := importer.CommitOptions{
		DuplicateStrategy: importer.DuplicateStrategy(*strategy),
		Assignment: assign.Config{
			Mode:   assign.Mode(*assignMode),
			UserID: *assignUser,
			Column: *assignColumn,
		},
	}
	if *assignPool != "" {
		opts.Assignment.Pool = strings.Split(*assignPool, ",")
	}

	start := time.Now()
	res, err := svc.Commit(ctx, job.ID, opts)
	if err != nil {
		log.Fatalf("Commit failed: %v", err)
	}
	log.Printf("[commit] imported=%d updated=%d skipped=%d in %s",
		res.Imported, res.Updated, res.Skipped, time.Since(start).Round(time.Millisecond))
}

// resolveSource turns the -file argument into a FileSource.
func resolveSource(ctx context.Context, cfg *config.Config, path string) (ingest.FileSource, error) {
	if !strings.HasPrefix(path, "s3://") {
		return ingest.LocalFile{Path: path}, nil
	}
	rest := strings.TrimPrefix(path, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("malformed s3 url %q, want s3://bucket/key", path)
	}
	client, err := ingest.NewS3Client(ctx, cfg.S3.Region, cfg.S3.GetAWSProfile())
	if err != nil {
		return nil, err
	}
	return ingest.S3Object{Client: client, Bucket: bucket, Key: key}, nil
}

// autoMap reads just the header row and runs the column matcher over it.
func autoMap(ctx context.Context, src ingest.FileSource, sheet string, delim rune) ([]mapping.ColumnMapping, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var header []string
	if ingest.IsWorkbook(src.Name()) {
		header, _, err = ingest.ReadWorkbookHeader(rc, sheet, 0)
	} else {
		header, _, _, err = ingest.ReadDelimitedHeader(rc, delim, 0)
	}
	if err != nil {
		return nil, err
	}
	return mapping.SuggestMappings(header), nil
}

func parseDelim(s string) rune {
	if s == "" {
		return 0
	}
	if s == "\\t" || s == "tab" {
		return '\t'
	}
	return rune(s[0])
}
