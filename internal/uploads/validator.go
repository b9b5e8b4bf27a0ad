package uploads

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tubestream/backend/internal/logging"
	"github.com/tubestream/backend/internal/storage"
)

const (
	// FieldVideo and FieldThumbnail are the only multipart file fields accepted.
	FieldVideo     = "video"
	FieldThumbnail = "thumbnail"

	videoDir     = "videos"
	thumbnailDir = "thumbnails"

	// thumbnailMaxSize caps thumbnail uploads well below the video ceiling.
	thumbnailMaxSize = 5 * 1024 * 1024
)

// RequestError is a client-facing upload failure; its message is safe to
// return in a 400 response.
type RequestError struct {
	msg string
}

func (e *RequestError) Error() string { return e.msg }

// NewRequestError wraps a client-facing message as a rejection error.
func NewRequestError(msg string) *RequestError { return &RequestError{msg: msg} }

var (
	errFileTooLarge = &RequestError{msg: "File too large. Videos must be under 500MB, thumbnails under 5MB."}
	errBadField     = &RequestError{msg: "Unexpected file field. Only video and thumbnail files are allowed."}
	errBadVideoType = &RequestError{msg: "Only video files are allowed for video upload"}
	errBadThumbType = &RequestError{msg: "Only image files are allowed for thumbnail upload"}
	errBadMultipart = &RequestError{msg: "Invalid multipart request"}
)

// SavedFile describes an accepted upload after it reached storage.
type SavedFile struct {
	Field    string
	Name     string
	Location string
	Size     int64
}

// Result carries the files a multipart request produced plus its ordinary
// form values.
type Result struct {
	Video     *SavedFile
	Thumbnail *SavedFile
	Fields    url.Values
}

// Validator streams multipart uploads into blob storage, enforcing the
// per-field MIME and size constraints before anything is persisted.
type Validator struct {
	store    storage.BlobStorage
	maxSize  int64
	now      func() time.Time
	randImpl func() int64
}

// NewValidator constructs a validator writing accepted files to store.
// maxSize is the per-file ceiling for video uploads in bytes.
func NewValidator(store storage.BlobStorage, maxSize int64) *Validator {
	return &Validator{
		store:    store,
		maxSize:  maxSize,
		now:      time.Now,
		randImpl: func() int64 { return rand.Int63n(1_000_000_000) },
	}
}

// Process consumes the request body. On any rejection the already-stored
// files of the same request are removed best-effort and a *RequestError
// describes the failure.
func (v *Validator) Process(r *http.Request) (Result, error) {
	result := Result{Fields: url.Values{}}

	reader, err := r.MultipartReader()
	if err != nil {
		return Result{}, errBadMultipart
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			v.cleanup(r, result)
			return Result{}, errBadMultipart
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, 1<<20))
			part.Close()
			if err != nil {
				v.cleanup(r, result)
				return Result{}, errBadMultipart
			}
			result.Fields.Add(part.FormName(), string(value))
			continue
		}

		saved, err := v.savePart(r, part)
		part.Close()
		if err != nil {
			v.cleanup(r, result)
			return Result{}, err
		}

		switch saved.Field {
		case FieldVideo:
			if result.Video != nil {
				v.remove(r, saved.Name)
				v.cleanup(r, result)
				return Result{}, errBadField
			}
			result.Video = saved
		case FieldThumbnail:
			if result.Thumbnail != nil {
				v.remove(r, saved.Name)
				v.cleanup(r, result)
				return Result{}, errBadField
			}
			result.Thumbnail = saved
		}
	}

	return result, nil
}

func (v *Validator) savePart(r *http.Request, part *multipart.Part) (*SavedFile, error) {
	field := part.FormName()
	contentType := part.Header.Get("Content-Type")

	var (
		name  string
		limit int64
	)

	suffix := fmt.Sprintf("%d-%d", v.now().UnixMilli(), v.randImpl())

	switch field {
	case FieldVideo:
		if !strings.HasPrefix(contentType, "video/") {
			return nil, errBadVideoType
		}
		name = path.Join(videoDir, fmt.Sprintf("video-%s%s", suffix, path.Ext(part.FileName())))
		limit = v.maxSize
	case FieldThumbnail:
		if !strings.HasPrefix(contentType, "image/") {
			return nil, errBadThumbType
		}
		// Thumbnails always land with a fixed image extension.
		name = path.Join(thumbnailDir, fmt.Sprintf("thumbnail-%s.jpg", suffix))
		limit = thumbnailMaxSize
	default:
		return nil, errBadField
	}

	counted := &countingReader{r: io.LimitReader(part, limit+1)}
	location, err := v.store.Save(r.Context(), name, counted)
	if err != nil {
		return nil, fmt.Errorf("store upload %s: %w", name, err)
	}

	if counted.n > limit {
		v.remove(r, name)
		return nil, errFileTooLarge
	}

	return &SavedFile{Field: field, Name: name, Location: location, Size: counted.n}, nil
}

// Discard removes the stored files of a result whose request was rejected
// after the multipart body had already been consumed.
func (v *Validator) Discard(r *http.Request, result Result) {
	v.cleanup(r, result)
}

func (v *Validator) cleanup(r *http.Request, result Result) {
	if result.Video != nil {
		v.remove(r, result.Video.Name)
	}
	if result.Thumbnail != nil {
		v.remove(r, result.Thumbnail.Name)
	}
}

func (v *Validator) remove(r *http.Request, name string) {
	remover, ok := v.store.(interface{ Remove(name string) error })
	if !ok {
		return
	}
	if err := remover.Remove(name); err != nil {
		logging.FromContext(r.Context()).Warn("remove rejected upload", "name", name, "error", err)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
