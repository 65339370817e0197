package export

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dyntable/internal/entity"
	"github.com/koustreak/dyntable/internal/errs"
	"github.com/koustreak/dyntable/internal/filestore"
	"github.com/koustreak/dyntable/internal/resultset"
)

type fakeReader struct {
	rs        *resultset.Resultset
	err       error
	datatable string
	id        int64
}

func (f *fakeReader) ReadEntries(ctx context.Context, sctx entity.SecurityContext, datatable string, appTableID int64, orderBy string) (*resultset.Resultset, error) {
	f.datatable = datatable
	f.id = appTableID
	return f.rs, f.err
}

type fakeStore struct {
	buckets []string
	putKey  string
	putBody []byte
	putType string
	putErr  error
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func (f *fakeStore) EnsureBucket(ctx context.Context, bucket string) error {
	f.buckets = append(f.buckets, bucket)
	return nil
}

func (f *fakeStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*filestore.ObjectInfo, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.putKey = key
	f.putBody = body
	f.putType = contentType
	return &filestore.ObjectInfo{Key: key, Size: int64(len(body)), ContentType: contentType}, nil
}

func (f *fakeStore) Get(ctx context.Context, bucket, key string) (filestore.Object, error) {
	return nil, errs.New(errs.ErrKindNotFound, "not implemented")
}

func (f *fakeStore) Stat(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	return nil, errs.New(errs.ErrKindNotFound, "not implemented")
}

func (f *fakeStore) List(ctx context.Context, bucket, prefix string) ([]filestore.ObjectInfo, error) {
	return nil, nil
}

func (f *fakeStore) PresignDownload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return "https://store.example/" + bucket + "/" + key, nil
}

func sampleResultset() *resultset.Resultset {
	return &resultset.Resultset{
		Columns: []resultset.ColumnHeader{{Name: "client_id"}, {Name: "notes"}},
		Rows: []resultset.Row{
			{Values: []resultset.Value{resultset.IntegerValue(7), resultset.TextValue("hello")}},
			{Values: []resultset.Value{resultset.IntegerValue(8), resultset.NullValue{}}},
		},
	}
}

func TestExportEntries(t *testing.T) {
	reader := &fakeReader{rs: sampleResultset()}
	store := &fakeStore{}
	svc := New(reader, store, "exports", time.Minute, nil)
	svc.now = func() time.Time { return time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC) }

	exp, err := svc.ExportEntries(context.Background(), nil, "extra client details", 7)
	require.NoError(t, err)

	assert.Equal(t, "extra client details", reader.datatable)
	assert.Equal(t, int64(7), reader.id)

	assert.Equal(t, "exports/extra_client_details/extra_client_details-20260828T103000.csv", exp.Key)
	assert.Equal(t, 2, exp.Rows)
	assert.Equal(t, "https://store.example/exports/"+exp.Key, exp.URL)

	assert.Equal(t, []string{"exports"}, store.buckets)
	assert.Equal(t, "text/csv", store.putType)
	assert.Equal(t, "client_id,notes\n7,hello\n8,\n", string(store.putBody))
}

func TestExportResultsetWithoutBucket(t *testing.T) {
	svc := New(&fakeReader{}, &fakeStore{}, "", time.Minute, nil)

	_, err := svc.ExportResultset(context.Background(), "t", sampleResultset())
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, "export.bucket.missing", errs.CodeOf(err))
}

func TestExportPropagatesReadFailure(t *testing.T) {
	reader := &fakeReader{err: errs.NotFound("datatable.not.found", "gone")}
	svc := New(reader, &fakeStore{}, "exports", time.Minute, nil)

	_, err := svc.ExportEntries(context.Background(), nil, "ghost", 7)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestExportPropagatesStoreFailure(t *testing.T) {
	store := &fakeStore{putErr: errs.New(errs.ErrKindConnectionFailed, "storage down")}
	svc := New(&fakeReader{rs: sampleResultset()}, store, "exports", time.Minute, nil)

	_, err := svc.ExportResultset(context.Background(), "t", sampleResultset())
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}
