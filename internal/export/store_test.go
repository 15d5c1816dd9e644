package export

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const listPage = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>plants</Name>
  <Prefix>summary/</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>%t</IsTruncated>
  <NextContinuationToken>%s</NextContinuationToken>
  <Contents><Key>%s</Key><Size>4</Size></Contents>
  <Contents><Key>%s</Key><Size>4</Size></Contents>
</ListBucketResult>`

const accessDenied = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied.</Message><BucketName>plants</BucketName><Resource>/plants</Resource><RequestId>1</RequestId><HostId>1</HostId></Error>`

// newListServer serves a first listing page, then either a second page or an
// access denied error
func newListServer(t *testing.T, failSecondPage bool) (*MinioStore, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		if r.URL.Query().Get("continuation-token") == "" {
			fmt.Fprintf(w, listPage, true, "page-2", "summary/a.parquet", "summary/b.parquet")
			return
		}
		if failSecondPage {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, accessDenied)
			return
		}
		fmt.Fprintf(w, listPage, false, "", "summary/c.parquet", "summary/d.parquet")
	}))

	store, err := NewMinioStore(MinioConfig{
		Endpoint:        strings.TrimPrefix(srv.URL, "http://"),
		AccessKeyID:     "test",
		SecretAccessKey: "test-secret",
		Region:          "us-east-1",
		Bucket:          "plants",
	})
	require.NoError(t, err)
	return store, srv
}

func ignoreIdleConns() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	}
}

func TestMinioStoreListObjectsPages(t *testing.T) {
	defer goleak.VerifyNone(t, append(ignoreIdleConns(), goleak.IgnoreCurrent())...)

	store, srv := newListServer(t, false)
	defer srv.Close()

	keys, err := store.ListObjects(context.Background(), "summary/")
	require.NoError(t, err)
	assert.Equal(t, []string{"summary/a.parquet", "summary/b.parquet", "summary/c.parquet", "summary/d.parquet"}, keys)
}

func TestMinioStoreListObjectsErrorStopsListing(t *testing.T) {
	defer goleak.VerifyNone(t, append(ignoreIdleConns(), goleak.IgnoreCurrent())...)

	store, srv := newListServer(t, true)
	defer srv.Close()

	keys, err := store.ListObjects(context.Background(), "summary/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list objects under summary/")
	assert.Nil(t, keys)
}
