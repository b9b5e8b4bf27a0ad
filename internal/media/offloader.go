package media

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tubestream/backend/internal/storage"
)

// MediaUpdater repoints a video's media locations after a successful offload.
type MediaUpdater interface {
	SetMediaLocations(ctx context.Context, id, videoURL, thumbnailURL string) error
}

// OffloaderConfig controls the concurrency characteristics of the offloader.
type OffloaderConfig struct {
	QueueSize int
	Workers   int
}

// Job names the locally staged files belonging to one uploaded video.
type Job struct {
	VideoID       string
	VideoName     string
	ThumbnailName string
}

var errOffloaderClosed = errors.New("media offloader closed")

// Offloader asynchronously copies uploaded media from the local staging
// directory to the configured object store and updates the video record to
// point at the store. Failures leave the record serving from local disk.
type Offloader struct {
	local   *storage.LocalStorage
	remote  storage.BlobStorage
	updater MediaUpdater
	logger  *slog.Logger

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewOffloader constructs a background worker pool that offloads media.
func NewOffloader(local *storage.LocalStorage, remote storage.BlobStorage, updater MediaUpdater, cfg OffloaderConfig, logger *slog.Logger) *Offloader {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	o := &Offloader{
		local:   local,
		remote:  remote,
		updater: updater,
		logger:  logger,
		jobs:    make(chan Job, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	o.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go o.worker()
	}

	return o
}

// Enqueue schedules an offload for the supplied video's media.
func (o *Offloader) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.ctx.Done():
		return errOffloaderClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.ctx.Done():
		return errOffloaderClosed
	case o.jobs <- job:
		return nil
	}
}

// Shutdown stops new enqueues and waits for the worker pool to drain the
// jobs already queued.
func (o *Offloader) Shutdown(ctx context.Context) error {
	o.once.Do(func() {
		o.cancel()
		close(o.jobs)
	})

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (o *Offloader) worker() {
	defer o.wg.Done()

	for {
		select {
		case <-o.ctx.Done():
			// Cancellation only stops new enqueues; whatever is already
			// queued still gets offloaded before the worker exits.
			for job := range o.jobs {
				o.handleJob(job)
			}
			return
		case job, ok := <-o.jobs:
			if !ok {
				return
			}
			o.handleJob(job)
		}
	}
}

func (o *Offloader) handleJob(job Job) {
	if o.local == nil || o.remote == nil || o.updater == nil {
		o.logger.Error("media offloader missing dependencies",
			"hasLocal", o.local != nil, "hasRemote", o.remote != nil, "hasUpdater", o.updater != nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	videoURL, err := o.copyToRemote(ctx, job.VideoName)
	if err != nil {
		o.logger.Error("offload video media", "videoId", job.VideoID, "name", job.VideoName, "error", err)
		return
	}

	var thumbURL string
	if job.ThumbnailName != "" {
		thumbURL, err = o.copyToRemote(ctx, job.ThumbnailName)
		if err != nil {
			o.logger.Error("offload thumbnail media", "videoId", job.VideoID, "name", job.ThumbnailName, "error", err)
			return
		}
	}

	updateCtx, cancelUpdate := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelUpdate()

	if err := o.updater.SetMediaLocations(updateCtx, job.VideoID, videoURL, thumbURL); err != nil {
		o.logger.Error("record offloaded media locations", "videoId", job.VideoID, "error", err)
		return
	}

	if err := o.local.Remove(job.VideoName); err != nil {
		o.logger.Warn("remove staged video media", "name", job.VideoName, "error", err)
	}
	if job.ThumbnailName != "" {
		if err := o.local.Remove(job.ThumbnailName); err != nil {
			o.logger.Warn("remove staged thumbnail media", "name", job.ThumbnailName, "error", err)
		}
	}
}

func (o *Offloader) copyToRemote(ctx context.Context, name string) (string, error) {
	f, err := o.local.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return o.remote.Save(ctx, name, f)
}
