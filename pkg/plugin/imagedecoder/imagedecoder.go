// Package imagedecoder decodes images through the native imageDecoder module.
//
// Decoding is a four step exchange: loadResource acquires a native handle for
// the resource, getImageInfo and decodeToPixels read it, and releaseResource
// frees it. A handle exists exactly when loadResource resolved successfully,
// so releaseResource is sent on every exit path after that and never when
// loading failed. A caller that stops waiting while loadResource is in flight
// gets its context error at once; the handle is released in the background
// if the load later succeeds.
package imagedecoder

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/vango-dev/vnative/pkg/bridge"
)

// Module is the native module name.
const Module = "imageDecoder"

// Native methods.
const (
	MethodLoadResource    = "loadResource"
	MethodGetImageInfo    = "getImageInfo"
	MethodDecodeToPixels  = "decodeToPixels"
	MethodReleaseResource = "releaseResource"
)

// Resource types understood by native loaders.
const (
	TypeAssets = "assets"
	TypeLocal  = "local"
	TypeRemote = "remote"
	TypeBase64 = "base64"
)

// FormatRGBA8888 is the pixel format of 8-bit non-premultiplied RGBA.
const FormatRGBA8888 = "RGBA_8888"

// Resource identifies something native can load. ResID names the native
// handle while the resource is loaded.
type Resource struct {
	ResID      string `json:"resId"`
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// NewResource returns a resource with a fresh id.
func NewResource(typ, identifier string) Resource {
	return Resource{
		ResID:      uuid.NewString(),
		Type:       typ,
		Identifier: identifier,
	}
}

// Info is the result of getImageInfo.
type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Image is a decoded image.
type Image struct {
	Info
	Pixels []byte `json:"pixels"`
}

// Decoder issues imageDecoder calls on a bridge context.
type Decoder struct {
	bc *bridge.Context
}

// New returns a Decoder for bc.
func New(bc *bridge.Context) *Decoder {
	return &Decoder{bc: bc}
}

// Decode loads res, reads its info and pixels, and releases it. It must not
// be called from the bridge context's loop, since it waits for native.
func (d *Decoder) Decode(ctx context.Context, res Resource) (*Image, error) {
	var img *Image
	err := bridge.Scoped(ctx,
		func(ctx context.Context) (string, error) {
			call := d.bc.CallNative(ctx, Module, MethodLoadResource, res)
			if _, err := call.Await(ctx); err != nil {
				if ctx.Err() != nil && call.Err() == nil {
					// The load is still in flight and may yet succeed.
					go d.releaseLate(context.WithoutCancel(ctx), call, res.ResID)
				}
				return "", err
			}
			return res.ResID, nil
		},
		func(ctx context.Context, resID string) error {
			info, err := bridge.Decode[Info](ctx, d.bc.CallNative(ctx, Module, MethodGetImageInfo, resID))
			if err != nil {
				return err
			}
			pixels, err := bridge.Decode[[]byte](ctx, d.bc.CallNative(ctx, Module, MethodDecodeToPixels, resID))
			if err != nil {
				return err
			}
			img = &Image{Info: info, Pixels: pixels}
			return nil
		},
		d.release,
	)
	if err != nil {
		return nil, fmt.Errorf("imagedecoder: decode %s %q: %w", res.Type, res.Identifier, err)
	}
	return img, nil
}

func (d *Decoder) release(ctx context.Context, resID string) error {
	_, err := d.bc.CallNative(ctx, Module, MethodReleaseResource, resID).Await(ctx)
	return err
}

// releaseLate waits for an abandoned loadResource call and releases the
// handle if the load succeeded.
func (d *Decoder) releaseLate(ctx context.Context, load *bridge.Call, resID string) {
	if _, err := load.Await(ctx); err != nil {
		return
	}
	if err := d.release(ctx, resID); err != nil {
		d.bc.Logger().Warn("release of abandoned image resource failed", "res_id", resID, "error", err)
	}
}

// RGBA returns the pixels as an image. Only FormatRGBA8888 is supported.
func (img *Image) RGBA() (*image.NRGBA, error) {
	if img.Format != FormatRGBA8888 {
		return nil, fmt.Errorf("imagedecoder: unsupported pixel format %q", img.Format)
	}
	if img.Width <= 0 || img.Height <= 0 || img.Width > math.MaxInt/4/img.Height ||
		len(img.Pixels) != img.Width*img.Height*4 {
		return nil, fmt.Errorf("imagedecoder: %d bytes do not fit %dx%d", len(img.Pixels), img.Width, img.Height)
	}
	return &image.NRGBA{
		Pix:    img.Pixels,
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}, nil
}

// Thumbnail scales the image to fit within maxW x maxH, keeping its aspect
// ratio. Images already small enough are returned unscaled.
func (img *Image) Thumbnail(maxW, maxH int) (*image.NRGBA, error) {
	src, err := img.RGBA()
	if err != nil {
		return nil, err
	}
	w, h := fit(img.Width, img.Height, maxW, maxH)
	if w == img.Width && h == img.Height {
		return src, nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// fit returns the largest size within maxW x maxH with the aspect ratio of
// w x h, never upscaling and never below 1x1.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	// Compare w/maxW with h/maxH without floating point.
	if w*maxH >= h*maxW {
		return maxW, max(1, h*maxW/w)
	}
	return max(1, w*maxH/h), maxH
}
