// Package warehouse overwrites a BigQuery table with the frame: the rows are
// staged as parquet in a bucket, loaded with a load job and the staged
// object removed again.
package warehouse

import (
	"context"
	"errors"
	"fmt"

	"sluice/internal/encode"
	"sluice/internal/frame"
	"sluice/internal/logging"
	"sluice/internal/objstore"
	"sluice/internal/transform"
	wh "sluice/internal/warehouse"
	"sluice/sink"
)

type Config struct {
	Table         wh.TableRef
	Client        wh.Client
	Store         objstore.Store // must serve the gs scheme
	StagingBucket string
	RunID         string
	Schema        transform.Schema
}

const stagingDir = ".sluice-staging"

type driver struct {
	cfg Config
}

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("warehouse-sink: expected Config, got %T", raw)
	}
	switch {
	case c.Client == nil:
		return errors.New("warehouse-sink: no warehouse client")
	case c.Store == nil:
		return errors.New("warehouse-sink: no store")
	case c.StagingBucket == "":
		return errors.New("warehouse-sink: no staging bucket")
	case c.RunID == "":
		return errors.New("warehouse-sink: no run id")
	case c.Table.Dataset == "" || c.Table.Table == "":
		return errors.New("warehouse-sink: no table")
	}
	d.cfg = c
	return nil
}

// StagingURI is where a run's rows wait for the load job.
func StagingURI(bucket, runID string) objstore.URI {
	return objstore.URI{
		Scheme: objstore.SchemeGCS,
		Bucket: bucket,
		Key:    stagingDir + "/" + runID + "/part-00000.parquet",
	}
}

func (d *driver) Write(ctx context.Context, f *frame.Frame) error {
	staged := StagingURI(d.cfg.StagingBucket, d.cfg.RunID)
	log := logging.With("table", d.cfg.Table.String(), "staging", staged.String())

	w, err := d.cfg.Store.Create(ctx, staged, encode.Parquet.ContentType())
	if err != nil {
		return fmt.Errorf("create %s: %w", staged, err)
	}
	if err := encode.Write(w, encode.Parquet, f, encode.Options{Schema: d.cfg.Schema}); err != nil {
		objstore.Abort(w)
		return fmt.Errorf("encode %s: %w", staged, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("stage %s: %w", staged, err)
	}
	defer func() {
		if err := d.cfg.Store.Delete(context.WithoutCancel(ctx), staged); err != nil {
			log.Warn("staging cleanup failed", "err", err)
		}
	}()

	if err := d.cfg.Client.LoadParquet(ctx, staged.String(), d.cfg.Table); err != nil {
		return err
	}
	log.Info("warehouse write done", "rows", f.Len())
	return nil
}

func (d *driver) Close() error { return nil }

func init() {
	sink.Register("warehouse", func() sink.Adapter { return &driver{} })
}
