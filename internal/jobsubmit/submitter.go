package jobsubmit

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/dataproc/v2/apiv1/dataprocpb"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"sluice/internal/config"
	"sluice/internal/logging"
	"sluice/internal/objstore"
	"sluice/internal/telemetry"
)

type Submitter struct {
	jobs    JobController
	store   objstore.Store
	project string
	region  string
	submit  config.Submit
	out     io.Writer
}

func NewSubmitter(jobs JobController, store objstore.Store, cfg config.Config) *Submitter {
	return &Submitter{
		jobs:    jobs,
		store:   store,
		project: cfg.GCP.ProjectID,
		region:  cfg.GCP.Region,
		submit:  cfg.Submit,
		out:     os.Stdout,
	}
}

// WithOutput redirects the final report line.
func (s *Submitter) WithOutput(w io.Writer) *Submitter {
	s.out = w
	return s
}

// Run submits the job, waits for it and prints its driver output. The
// returned string is that output.
func (s *Submitter) Run(ctx context.Context) (string, error) {
	log := logging.With("project", s.project, "region", s.region, "cluster", s.submit.ClusterName)

	job, err := BuildJob(s.submit)
	if err != nil {
		return "", err
	}
	req := &dataprocpb.SubmitJobRequest{ProjectId: s.project, Region: s.region, Job: job}

	log.Info("submitting job", "kind", string(s.submit.JobKind), "main", s.submit.MainURI)
	done, err := s.jobs.SubmitAndWait(ctx, req)
	if err != nil {
		telemetry.JobsSubmitted.WithLabelValues("error").Inc()
		if st, ok := status.FromError(err); ok {
			log.Error("job failed", "code", st.Code().String(), "message", st.Message())
		} else {
			log.Error("job failed", "err", err)
		}
		return "", err
	}
	telemetry.JobsSubmitted.WithLabelValues("ok").Inc()
	log.Debug("job response", "job", protojson.Format(done))
	if ref := done.GetReference(); ref != nil {
		log.Info("job finished", "job_id", ref.GetJobId(), "state", done.GetStatus().GetState().String())
	}

	bucket, prefix, err := LocateOutput(done.GetDriverOutputResourceUri())
	if err != nil {
		return "", err
	}
	output, err := FetchOutput(ctx, s.store, bucket, prefix, s.submit.OutputSuffix)
	if err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(s.out, "Job finished successfully: %s\n", output); err != nil {
		return "", err
	}
	return output, nil
}

// FetchOutput reads the first driver output chunk, <prefix><suffix>, as
// text.
func FetchOutput(ctx context.Context, store objstore.Store, bucket, prefix, suffix string) (string, error) {
	if suffix == "" {
		suffix = ".000000000"
	}
	u := objstore.URI{Scheme: objstore.SchemeGCS, Bucket: bucket, Key: prefix + suffix}
	b, err := objstore.ReadAll(ctx, store, u)
	if err != nil {
		return "", fmt.Errorf("fetch driver output: %w", err)
	}
	return string(b), nil
}
