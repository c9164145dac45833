package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/bbab/servicecenter/internal/cache"
	"github.com/bbab/servicecenter/internal/models"
)

func monitoredOrg() models.Organization {
	return models.Organization{
		BaseModel:       models.BaseModel{ID: "org-1"},
		Name:            "Acme",
		UptimeMonitorID: "789012345",
		UptimeAPIKey:    "ur-key",
	}
}

func TestUptimeFetchParsesMonitor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/getMonitors", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "ur-key", r.PostForm.Get("api_key"))
		require.Equal(t, "789012345", r.PostForm.Get("monitors"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"stat": "ok",
			"monitors": [
				{"id": 789012345, "friendly_name": "acme.example", "status": 2, "custom_uptime_ratio": "99.987"}
			]
		}`))
	}))
	defer server.Close()

	client := NewUptimeClient(server.URL, time.Second)
	result, err := client.Fetch(context.Background(), monitoredOrg())
	require.NoError(t, err)
	require.Equal(t, "789012345", result.MonitorID)
	require.Equal(t, "acme.example", result.FriendlyName)
	require.Equal(t, "up", result.Status)
	require.InDelta(t, 99.987, result.Ratio30d, 0.0001)
}

func TestUptimeFetchSkipsUnconfigured(t *testing.T) {
	client := NewUptimeClient("http://127.0.0.1:1", time.Second)

	_, err := client.Fetch(context.Background(), models.Organization{})
	require.ErrorIs(t, err, ErrUptimeNotConfigured)
}

func TestUptimeFetchReportsAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stat": "fail", "error": {"message": "api_key is wrong"}}`))
	}))
	defer server.Close()

	client := NewUptimeClient(server.URL, time.Second)
	_, err := client.Fetch(context.Background(), monitoredOrg())
	require.Error(t, err)
	require.Contains(t, err.Error(), "api_key is wrong")
}

func TestUptimeFetchReportsMissingMonitor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stat": "ok", "monitors": []}`))
	}))
	defer server.Close()

	client := NewUptimeClient(server.URL, time.Second)
	_, err := client.Fetch(context.Background(), monitoredOrg())
	require.Error(t, err)
}

func TestSSLFetchInspectsCertificate(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	host := server.Listener.Addr().String()

	inspector := NewSSLInspector(2 * time.Second)
	result, err := inspector.Fetch(context.Background(), models.Organization{SSLHost: host})
	require.NoError(t, err)
	require.Equal(t, host, result.Host)
	require.False(t, result.NotAfter.IsZero())
	// httptest certificates are freshly generated and valid for years.
	require.Greater(t, result.DaysRemaining, 0)
}

func TestSSLFetchSkipsUnconfigured(t *testing.T) {
	inspector := NewSSLInspector(time.Second)

	_, err := inspector.Fetch(context.Background(), models.Organization{})
	require.ErrorIs(t, err, ErrSSLNotConfigured)
}

func TestSSLFetchReportsUnreachableHost(t *testing.T) {
	inspector := NewSSLInspector(200 * time.Millisecond)

	_, err := inspector.Fetch(context.Background(), models.Organization{SSLHost: "127.0.0.1:1"})
	require.Error(t, err)
}

type fakeObjectLister struct {
	objects []s3types.Object
	err     error
	pages   int
}

func (f *fakeObjectLister) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.pages++
	if f.err != nil {
		return nil, f.err
	}
	return &s3.ListObjectsV2Output{
		Contents:    f.objects,
		IsTruncated: aws.Bool(false),
	}, nil
}

func TestBackupFetchFindsNewestObject(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	older := now.Add(-72 * time.Hour)
	newer := now.Add(-12 * time.Hour)

	lister := &fakeObjectLister{
		objects: []s3types.Object{
			{Key: aws.String("nightly/2025-05-30.tar.gz"), Size: aws.Int64(100), LastModified: &older},
			{Key: aws.String("nightly/2025-06-02.tar.gz"), Size: aws.Int64(200), LastModified: &newer},
		},
	}

	fetcher := NewBackupListerWithClient(lister, time.Second)
	fetcher.WithClock(func() time.Time { return now })

	result, err := fetcher.Fetch(context.Background(), models.Organization{
		BackupBucket: "acme-backups",
		BackupPrefix: "nightly/",
	})
	require.NoError(t, err)
	require.Equal(t, "nightly/2025-06-02.tar.gz", result.NewestKey)
	require.Equal(t, int64(200), result.SizeBytes)
	require.InDelta(t, 12.0, result.AgeHours, 0.01)
}

func TestBackupFetchSkipsUnconfigured(t *testing.T) {
	fetcher := NewBackupListerWithClient(&fakeObjectLister{}, time.Second)

	_, err := fetcher.Fetch(context.Background(), models.Organization{})
	require.ErrorIs(t, err, ErrBackupNotConfigured)
}

func TestBackupFetchReportsEmptyBucket(t *testing.T) {
	fetcher := NewBackupListerWithClient(&fakeObjectLister{}, time.Second)

	_, err := fetcher.Fetch(context.Background(), models.Organization{BackupBucket: "empty"})
	require.Error(t, err)
}

func TestBackupFetchPropagatesListError(t *testing.T) {
	fetcher := NewBackupListerWithClient(&fakeObjectLister{err: errors.New("access denied")}, time.Second)

	_, err := fetcher.Fetch(context.Background(), models.Organization{BackupBucket: "locked"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "access denied")
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := cache.NewMemoryStore()
	ctx := context.Background()

	snap := Snapshot{
		OrganizationID: "org-1",
		GeneratedAt:    time.Now().UTC().Truncate(time.Second),
		Uptime:         &UptimeResult{MonitorID: "1", Status: "up", Ratio30d: 99.9},
		SSLError:       "handshake timed out",
	}

	require.NoError(t, StoreSnapshot(ctx, store, snap, time.Minute))

	loaded, ok, err := LoadSnapshot(ctx, store, "org-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap.OrganizationID, loaded.OrganizationID)
	require.NotNil(t, loaded.Uptime)
	require.Equal(t, "up", loaded.Uptime.Status)
	require.Nil(t, loaded.SSL)
	require.Equal(t, "handshake timed out", loaded.SSLError)
}

func TestSnapshotAbsentForUnknownOrganization(t *testing.T) {
	store := cache.NewMemoryStore()

	_, ok, err := LoadSnapshot(context.Background(), store, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}
