// Package export materializes datatable contents as CSV objects in the
// configured object store and hands back time-limited download URLs.
package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/koustreak/dyntable/internal/entity"
	"github.com/koustreak/dyntable/internal/errs"
	"github.com/koustreak/dyntable/internal/filestore"
	"github.com/koustreak/dyntable/internal/logger"
	"github.com/koustreak/dyntable/internal/resultset"
)

const contentType = "text/csv"

// EntriesReader is the slice of the datatable engine the exporter needs.
type EntriesReader interface {
	ReadEntries(ctx context.Context, sctx entity.SecurityContext, datatable string, appTableID int64, orderBy string) (*resultset.Resultset, error)
}

// Export describes one finished export.
type Export struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	Rows int    `json:"rows"`
	URL  string `json:"url,omitempty"`
}

// Service writes datatable resultsets to the object store.
type Service struct {
	reader EntriesReader
	store  filestore.Store
	bucket string
	ttl    time.Duration
	log    *logger.Logger

	now func() time.Time
}

// New wires an exporter. ttl bounds the generated download URLs; zero
// falls back to one hour.
func New(reader EntriesReader, store filestore.Store, bucket string, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = logger.New(nil)
	}
	return &Service{reader: reader, store: store, bucket: bucket, ttl: ttl, log: log, now: time.Now}
}

// ExportEntries reads every row a datatable holds for one entity instance,
// renders it as CSV, and stores it under a timestamped key.
func (s *Service) ExportEntries(ctx context.Context, sctx entity.SecurityContext, datatable string, appTableID int64) (*Export, error) {
	rs, err := s.reader.ReadEntries(ctx, sctx, datatable, appTableID, "")
	if err != nil {
		return nil, err
	}
	return s.ExportResultset(ctx, datatable, rs)
}

// ExportResultset stores an already-built resultset as a CSV object and
// returns its key alongside a presigned download URL.
func (s *Service) ExportResultset(ctx context.Context, datatable string, rs *resultset.Resultset) (*Export, error) {
	if s.bucket == "" {
		return nil, errs.Validation("export.bucket.missing", "no export bucket is configured").WithParam("bucket")
	}

	var buf bytes.Buffer
	if err := rs.WriteCSV(&buf); err != nil {
		return nil, err
	}
	key := s.objectKey(datatable)

	if err := s.store.EnsureBucket(ctx, s.bucket); err != nil {
		return nil, err
	}
	info, err := s.store.Put(ctx, s.bucket, key, &buf, int64(buf.Len()), contentType)
	if err != nil {
		return nil, err
	}
	url, err := s.store.PresignDownload(ctx, s.bucket, key, s.ttl)
	if err != nil {
		return nil, err
	}

	s.log.With().Str("datatable", datatable).Str("key", key).Int64("bytes", info.Size).Logger().
		Info("datatable exported")
	return &Export{Key: key, Size: info.Size, Rows: len(rs.Rows), URL: url}, nil
}

func (s *Service) objectKey(datatable string) string {
	name := strings.ReplaceAll(strings.ToLower(datatable), " ", "_")
	return fmt.Sprintf("exports/%s/%s-%s.csv", name, name, s.now().UTC().Format("20060102T150405"))
}
