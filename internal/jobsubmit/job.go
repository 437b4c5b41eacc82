// Package jobsubmit submits a Spark job to a Dataproc cluster, waits for it
// to finish and fetches the driver output it left in Cloud Storage.
package jobsubmit

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	dataproc "cloud.google.com/go/dataproc/v2/apiv1"
	"cloud.google.com/go/dataproc/v2/apiv1/dataprocpb"

	"sluice/internal/config"
)

var ErrUnexpectedOutputURI = errors.New("unexpected driver output uri")

// JobController submits a job and blocks until it is terminal.
type JobController interface {
	SubmitAndWait(ctx context.Context, req *dataprocpb.SubmitJobRequest) (*dataprocpb.Job, error)
}

// DataprocController is the JobController backed by the Dataproc API.
type DataprocController struct {
	client *dataproc.JobControllerClient
}

func NewDataprocController(c *dataproc.JobControllerClient) *DataprocController {
	return &DataprocController{client: c}
}

func (d *DataprocController) SubmitAndWait(ctx context.Context, req *dataprocpb.SubmitJobRequest) (*dataprocpb.Job, error) {
	op, err := d.client.SubmitJobAsOperation(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}
	job, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for job: %w", err)
	}
	return job, nil
}

// BuildJob assembles the job from configuration: cluster placement, the
// entry point for the job kind and its positional args.
func BuildJob(cfg config.Submit) (*dataprocpb.Job, error) {
	job := &dataprocpb.Job{
		Placement: &dataprocpb.JobPlacement{ClusterName: cfg.ClusterName},
	}
	switch cfg.JobKind {
	case config.JobPySpark, "":
		job.TypeJob = &dataprocpb.Job_PysparkJob{PysparkJob: &dataprocpb.PySparkJob{
			MainPythonFileUri: cfg.MainURI,
			Args:              cfg.Args,
		}}
	case config.JobSpark:
		sj := &dataprocpb.SparkJob{Args: cfg.Args, JarFileUris: cfg.JarURIs}
		if cfg.MainClass != "" {
			sj.Driver = &dataprocpb.SparkJob_MainClass{MainClass: cfg.MainClass}
			if cfg.MainURI != "" {
				sj.JarFileUris = append([]string{cfg.MainURI}, sj.JarFileUris...)
			}
		} else {
			sj.Driver = &dataprocpb.SparkJob_MainJarFileUri{MainJarFileUri: cfg.MainURI}
		}
		job.TypeJob = &dataprocpb.Job_SparkJob{SparkJob: sj}
	default:
		return nil, fmt.Errorf("job kind %q not supported", cfg.JobKind)
	}
	return job, nil
}

var outputURIPattern = regexp.MustCompile(`^gs://(.*?)/(.*)$`)

// LocateOutput splits the driver output URI into bucket and object prefix.
func LocateOutput(uri string) (bucket, prefix string, err error) {
	m := outputURIPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrUnexpectedOutputURI, uri)
	}
	return m[1], m[2], nil
}
