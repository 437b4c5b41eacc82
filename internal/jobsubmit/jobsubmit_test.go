package jobsubmit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/dataproc/v2/apiv1/dataprocpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sluice/internal/config"
	"sluice/internal/objstore"
)

func TestLocateOutput(t *testing.T) {
	bucket, prefix, err := LocateOutput("gs://bucket/out")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "out", prefix)

	bucket, prefix, err = LocateOutput("gs://dataproc-staging/google-cloud-dataproc-metainfo/abc/jobs/j1/driveroutput")
	require.NoError(t, err)
	assert.Equal(t, "dataproc-staging", bucket)
	assert.Equal(t, "google-cloud-dataproc-metainfo/abc/jobs/j1/driveroutput", prefix)

	for _, bad := range []string{"", "s3://bucket/out", "gs://bucket"} {
		_, _, err := LocateOutput(bad)
		assert.ErrorIs(t, err, ErrUnexpectedOutputURI, bad)
	}
}

func TestBuildJob(t *testing.T) {
	job, err := BuildJob(config.Submit{
		ClusterName: "dc-cluster",
		JobKind:     config.JobPySpark,
		MainURI:     "gs://dc-solution-bucket/main.py",
		Args:        []string{"gs://in/x.csv", "gs://out/", "csv", "ds.t"},
	})
	require.NoError(t, err)
	assert.Equal(t, "dc-cluster", job.GetPlacement().GetClusterName())
	assert.Equal(t, "gs://dc-solution-bucket/main.py", job.GetPysparkJob().GetMainPythonFileUri())
	assert.Equal(t, []string{"gs://in/x.csv", "gs://out/", "csv", "ds.t"}, job.GetPysparkJob().GetArgs())

	job, err = BuildJob(config.Submit{JobKind: config.JobSpark, MainURI: "gs://b/app.jar"})
	require.NoError(t, err)
	assert.Equal(t, "gs://b/app.jar", job.GetSparkJob().GetMainJarFileUri())

	job, err = BuildJob(config.Submit{JobKind: config.JobSpark, MainURI: "gs://b/app.jar", MainClass: "br.Main", JarURIs: []string{"gs://b/dep.jar"}})
	require.NoError(t, err)
	assert.Equal(t, "br.Main", job.GetSparkJob().GetMainClass())
	assert.Equal(t, []string{"gs://b/app.jar", "gs://b/dep.jar"}, job.GetSparkJob().GetJarFileUris())

	_, err = BuildJob(config.Submit{JobKind: "hive"})
	assert.Error(t, err)
}

type fakeController struct {
	req *dataprocpb.SubmitJobRequest
	job *dataprocpb.Job
	err error
}

func (f *fakeController) SubmitAndWait(_ context.Context, req *dataprocpb.SubmitJobRequest) (*dataprocpb.Job, error) {
	f.req = req
	return f.job, f.err
}

func testConfig() config.Config {
	return config.Config{
		GCP: config.GCP{ProjectID: "ac-data-challenge", Region: "us-central1"},
		Submit: config.Submit{
			ClusterName:  "dc-cluster",
			JobKind:      config.JobPySpark,
			MainURI:      "gs://dc-solution-bucket/main.py",
			OutputSuffix: ".000000000",
		},
	}
}

func TestSubmitter_Run(t *testing.T) {
	base := t.TempDir()
	p := filepath.Join(base, "bucket", "out.000000000")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("rows written: 42"), 0o644))

	jobs := &fakeController{job: &dataprocpb.Job{DriverOutputResourceUri: "gs://bucket/out"}}
	var out bytes.Buffer
	s := NewSubmitter(jobs, objstore.NewFileStore(base), testConfig()).WithOutput(&out)

	got, err := s.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "rows written: 42", got)
	assert.Equal(t, "Job finished successfully: rows written: 42\n", out.String())
	assert.Equal(t, "ac-data-challenge", jobs.req.GetProjectId())
	assert.Equal(t, "us-central1", jobs.req.GetRegion())
	assert.Equal(t, "dc-cluster", jobs.req.GetJob().GetPlacement().GetClusterName())
}

func TestSubmitter_SurfacesStatusError(t *testing.T) {
	jobs := &fakeController{err: status.Error(codes.PermissionDenied, "caller lacks dataproc.jobs.create")}
	s := NewSubmitter(jobs, objstore.NewFileStore(t.TempDir()), testConfig()).WithOutput(&bytes.Buffer{})

	_, err := s.Run(t.Context())
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestSubmitter_UnexpectedOutputURI(t *testing.T) {
	jobs := &fakeController{job: &dataprocpb.Job{DriverOutputResourceUri: "hdfs:///out"}}
	var out bytes.Buffer
	s := NewSubmitter(jobs, objstore.NewFileStore(t.TempDir()), testConfig()).WithOutput(&out)

	_, err := s.Run(t.Context())
	assert.ErrorIs(t, err, ErrUnexpectedOutputURI)
	assert.Empty(t, out.String())
}

func TestFetchOutput_Missing(t *testing.T) {
	_, err := FetchOutput(t.Context(), objstore.NewFileStore(t.TempDir()), "bucket", "out", "")
	assert.ErrorIs(t, err, objstore.ErrNotFound)
}
