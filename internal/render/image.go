package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	"dataflow-gateway/internal/engine"
)

func (r *Renderer) imagePayload(ctx context.Context, v engine.Value) ([]byte, error) {
	if v.ObjectKey != "" {
		if r.blobs == nil {
			return nil, errors.New("no blob store configured")
		}
		return r.blobs.Get(ctx, v.ObjectKey)
	}
	// Small images may be stored inline as base64.
	encoded, ok := v.Data.(string)
	if !ok {
		return nil, fmt.Errorf("image value %s has no payload", v.ID)
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// renderImage fits the image within max_width and embeds it as a PNG data URI.
func (r *Renderer) renderImage(ctx context.Context, req engine.RenderValueRequest) (string, map[string]any, error) {
	data, err := r.imagePayload(ctx, req.Value)
	if err != nil {
		return "", nil, fmt.Errorf("load image: %w", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("decode image: %w", err)
	}

	maxWidth := intConfig(req.RenderConfig, "max_width", r.previewWidth)
	if maxWidth <= 0 {
		maxWidth = r.previewWidth
	}
	bounds := img.Bounds()
	if bounds.Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return "", nil, fmt.Errorf("encode image: %w", err)
	}
	out := img.Bounds()
	rendered := fmt.Sprintf(`<img src="data:image/png;base64,%s" width="%d" height="%d" alt="%s"/>`,
		base64.StdEncoding.EncodeToString(buf.Bytes()), out.Dx(), out.Dy(), req.Value.ID)
	meta := map[string]any{
		"source_format": format,
		"source_width":  bounds.Dx(),
		"source_height": bounds.Dy(),
		"width":         out.Dx(),
		"height":        out.Dy(),
	}
	return rendered, meta, nil
}
