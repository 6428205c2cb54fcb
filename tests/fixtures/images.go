package fixtures

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
)

// Image formats produced by EncodeImage
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatGIF  = "gif"
)

// EncodeImage renders a w×h gradient in the given format. seed varies the
// pixels so different seeds give different bytes.
func EncodeImage(format string, w, h int, seed uint8) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x) + seed, G: uint8(y), B: seed, A: 255})
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(&buf, img)
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80})
	case FormatGIF:
		err = gif.Encode(&buf, img, nil)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		panic(fmt.Sprintf("fixtures: encode %s: %v", format, err))
	}
	return buf.Bytes()
}

// WritePNG writes a w×h PNG into dir and returns its path
func WritePNG(dir string, w, h int, seed uint8) string {
	return WriteFile(dir, fmt.Sprintf("image-%dx%d-%d.png", w, h, seed), EncodeImage(FormatPNG, w, h, seed))
}

// TruncatedPNG returns a PNG whose header is intact but whose image data is
// cut short, so type sniffing passes and decoding fails.
func TruncatedPNG() []byte {
	full := EncodeImage(FormatPNG, 64, 64, 7)
	return full[:len(full)/2]
}

// OversizedPNGHeader returns a PNG signature and IHDR chunk declaring
// width×height with no image data. Enough for DecodeConfig, too little for
// a decode.
func OversizedPNGHeader(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor
	writeChunk(&buf, "IHDR", ihdr)
	return buf.Bytes()
}

// MinimalMP4 returns the bytes of an ftyp box, which is what MP4 sniffing
// keys on.
func MinimalMP4() []byte {
	box := []byte{0, 0, 0, 0x18}
	box = append(box, "ftypisom"...)
	box = append(box, 0, 0, 2, 0)
	box = append(box, "isomiso2"...)
	return append(box, make([]byte, 64)...)
}

func writeChunk(buf *bytes.Buffer, kind string, data []byte) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.WriteString(kind)
	buf.Write(data)
	_ = binary.Write(buf, binary.BigEndian, crc32.ChecksumIEEE(append([]byte(kind), data...)))
}
