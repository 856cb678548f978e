package downloader

import (
	"context"
	"fmt"
	"path"
	"time"

	errs "knexport/pkg/errors"
	"knexport/pkg/kidsnote"
	"knexport/pkg/logger"
	"knexport/pkg/retry"
)

// Saver writes one file below the export root and returns the final path.
// Implemented by storage.Manager.
type Saver interface {
	SaveText(ctx context.Context, relPath, text string) (string, error)
	SaveBytes(ctx context.Context, relPath string, data []byte) (string, error)
	SaveURL(ctx context.Context, relPath, rawURL string) (string, error)
}

// StopSignal is the part of the run context the downloader consults.
type StopSignal interface {
	StopRequested() bool
}

const (
	ContentFile  = "content.txt"
	MetadataFile = "item.json"

	defaultPhotoExt = "jpg"
	defaultVideoExt = "mp4"
)

// Options configures a Downloader
type Options struct {
	Kind          kidsnote.Kind
	MaxNameLength int
	AssetDelay    time.Duration
	SaveMetadata  bool
}

// Result is the outcome of exporting one item. Asset counts are valid even
// when the item failed part-way.
type Result struct {
	OK      bool
	Stopped bool
	Err     error

	Folder       string
	UsedFallback bool
	Photos       int
	Videos       int
	Files        int
}

// Downloader exports one item at a time: its text body, photos, videos and
// attachments, strictly in sequence.
type Downloader struct {
	saver  Saver
	opts   Options
	logger logger.Logger
}

// New creates a Downloader
func New(saver Saver, opts Options, log logger.Logger) *Downloader {
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = DefaultMaxNameLength
	}
	return &Downloader{
		saver:  saver,
		opts:   opts,
		logger: logger.OrDefault(log).WithField("component", "downloader"),
	}
}

// itemState tracks which folder an item is being written to. Once the
// fallback folder has been used the rest of the item follows it.
type itemState struct {
	dir          string
	folders      Folders
	usedFallback bool
	assets       int
}

func (s *itemState) folder() string {
	if s.usedFallback {
		return s.folders.Fallback
	}
	return s.folders.Primary
}

func (s *itemState) rel(name string) string {
	return path.Join(s.dir, s.folder(), name)
}

// Export writes item index (1-based, for logs only). A stop observed before
// any asset returns a Result with Stopped set and no error.
func (d *Downloader) Export(ctx context.Context, item *kidsnote.Item, index int, run StopSignal) Result {
	st := &itemState{
		dir:     d.opts.Kind.Collection(),
		folders: FolderNames(d.opts.Kind, item, d.opts.MaxNameLength),
	}
	res := Result{}
	log := d.logger.WithFields(map[string]interface{}{
		"item_id": item.ID,
		"index":   index,
	})

	finish := func(err error) Result {
		res.Folder = path.Join(st.dir, st.folder())
		res.UsedFallback = st.usedFallback
		if err != nil {
			res.Err = err
			log.WithError(err).Error("item export failed")
			return res
		}
		res.OK = !res.Stopped
		return res
	}

	if run.StopRequested() {
		res.Stopped = true
		return finish(nil)
	}
	err := d.save(ctx, st, log, ContentFile, ContentFile, func(rel string) (string, error) {
		return d.saver.SaveText(ctx, rel, item.Content)
	})
	if err != nil {
		return finish(err)
	}

	if d.opts.SaveMetadata && len(item.Raw) > 0 {
		err := d.save(ctx, st, log, MetadataFile, MetadataFile, func(rel string) (string, error) {
			return d.saver.SaveBytes(ctx, rel, item.Raw)
		})
		if err != nil {
			return finish(err)
		}
	}

	for i, img := range item.Images {
		rawURL := img.Best()
		name := NumberedName(i+1, rawURL, defaultPhotoExt)
		stopped, err := d.asset(ctx, st, log, run, item.ID, path.Join("photos", name), path.Join("photos", name), rawURL)
		if err != nil || stopped {
			res.Stopped = stopped
			return finish(err)
		}
		res.Photos++
	}

	for i, v := range item.Videos {
		rawURL := v.Best()
		name := NumberedName(i+1, rawURL, defaultVideoExt)
		stopped, err := d.asset(ctx, st, log, run, item.ID, path.Join("videos", name), path.Join("videos", name), rawURL)
		if err != nil || stopped {
			res.Stopped = stopped
			return finish(err)
		}
		res.Videos++
	}

	for i, att := range item.Files {
		name, fallback := AttachmentNames(i+1, att, d.opts.MaxNameLength)
		stopped, err := d.asset(ctx, st, log, run, item.ID, path.Join("files", name), path.Join("files", fallback), att.URL)
		if err != nil || stopped {
			res.Stopped = stopped
			return finish(err)
		}
		res.Files++
	}

	log.DebugWithFields("item exported", map[string]interface{}{
		"folder": path.Join(st.dir, st.folder()),
		"photos": res.Photos,
		"videos": res.Videos,
		"files":  res.Files,
	})
	return finish(nil)
}

// asset downloads one URL after the stop check and the inter-asset delay.
func (d *Downloader) asset(ctx context.Context, st *itemState, log logger.Logger, run StopSignal, itemID, name, fallbackName, rawURL string) (bool, error) {
	if run.StopRequested() {
		return true, nil
	}
	if st.assets > 0 && d.opts.AssetDelay > 0 {
		if err := retry.Wait(ctx, d.opts.AssetDelay); err != nil {
			return false, err
		}
	}
	st.assets++

	var saved string
	err := d.save(ctx, st, log, name, fallbackName, func(rel string) (string, error) {
		p, err := d.saver.SaveURL(ctx, rel, rawURL)
		saved = p
		return p, err
	})
	logger.LogAsset(log, itemID, path.Dir(name), saved, err)
	return false, err
}

// save writes name into the item's current folder. An invalid-filename
// failure is retried exactly once as fallbackName in the fallback folder.
func (d *Downloader) save(ctx context.Context, st *itemState, log logger.Logger, name, fallbackName string, write func(rel string) (string, error)) error {
	_, err := write(st.rel(name))
	if err == nil {
		return nil
	}
	if !errs.IsType(err, errs.ErrorTypeInvalidFilename) || ctx.Err() != nil {
		return err
	}

	retryName := fallbackName
	if st.usedFallback && retryName == name {
		return err
	}
	log.WarnWithFields("destination name rejected, retrying with fallback", map[string]interface{}{
		"rejected": st.rel(name),
		"fallback": path.Join(st.dir, st.folders.Fallback, retryName),
		"error":    err.Error(),
	})
	st.usedFallback = true

	if _, err := write(st.rel(retryName)); err != nil {
		return fmt.Errorf("fallback path also failed: %w", err)
	}
	return nil
}
