package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/mural/types"
)

// ErrFilename is returned for sidecar names that are not plain file names.
var ErrFilename = errors.New("invalid sidecar filename")

// FileWriter writes sidecar files next to the session's records, outside
// the dataset manifests.
type FileWriter interface {
	// PutFile writes a file under the session partition's files/ prefix.
	PutFile(ctx context.Context, filename, contentType string, data []byte) error
}

// PutFile implements FileWriter.
func (c *LodeClient) PutFile(ctx context.Context, filename, _ string, data []byte) error {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return fmt.Errorf("%w: %q", ErrFilename, filename)
	}
	store, err := c.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, c.config.Dataset)
	}
	path := c.buildFilePath(filename)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// buildFilePath is
// datasets/<dataset>/partitions/session=<s>/role=<r>/day=<d>/files/<filename>.
func (c *LodeClient) buildFilePath(filename string) string {
	return fmt.Sprintf("datasets/%s/partitions/session=%s/role=%s/day=%s/files/%s",
		c.config.Dataset, c.config.SessionID, c.config.Role, c.config.Day, filename)
}

// PutFrameImage stores img as a PNG sidecar. Invalid images are skipped.
func PutFrameImage(ctx context.Context, w FileWriter, filename string, img types.RawImage) error {
	if !img.Valid || img.Width == 0 || img.Height == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, toImage(img)); err != nil {
		return fmt.Errorf("encode %s: %w", filename, err)
	}
	return w.PutFile(ctx, filename, "image/png", buf.Bytes())
}

// toImage views img as an image.Image. Components 1 and 2 map to grey,
// 3 and 4 to RGBA with opaque alpha added for 3.
func toImage(img types.RawImage) image.Image {
	rect := image.Rect(0, 0, img.Width, img.Height)
	switch img.Components {
	case 1:
		return &image.Gray{Pix: img.Pixels, Stride: img.Width, Rect: rect}
	case 4:
		return &image.NRGBA{Pix: img.Pixels, Stride: img.Width * 4, Rect: rect}
	}
	out := image.NewNRGBA(rect)
	c := img.Components
	for p := range img.Width * img.Height {
		src := img.Pixels[p*c : (p+1)*c]
		dst := out.Pix[p*4 : p*4+4]
		if c == 2 {
			dst[0], dst[1], dst[2], dst[3] = src[0], src[0], src[0], src[1]
			continue
		}
		dst[0], dst[1], dst[2], dst[3] = src[0], src[1], src[2], 0xFF
	}
	return out
}

var _ FileWriter = (*LodeClient)(nil)
