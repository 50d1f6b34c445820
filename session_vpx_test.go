//go:build vpx

package vpxivf

import (
	"bytes"
	"testing"

	"github.com/mengelbart/vpxivf/bytestream"
	"github.com/mengelbart/vpxivf/yuv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibvpxEndToEnd(t *testing.T) {
	for _, c := range []Codec{VP8, VP9} {
		t.Run(c.String(), func(t *testing.T) {
			config := testConfig()
			config.Codec = c
			config.KeyframeInterval = 10
			sink := bytestream.NewBufferSink(1 << 20)
			enc, err := OpenEncoder(sink, config)
			require.NoError(t, err)
			n, err := enc.Run(bytes.NewReader(rawVideo(5)))
			require.NoError(t, err)
			assert.Equal(t, 5, n)
			require.NoError(t, enc.Close())

			header, _, _ := readContainer(t, sink.Bytes())
			assert.Equal(t, c.FourCC(), header.FourCC)
			assert.Equal(t, uint32(5), header.FrameCount)

			var images []*yuv.Image
			dec, err := OpenDecoder(bytestream.NewBufferSource(sink.Bytes()), func(img *yuv.Image) error {
				images = append(images, img)
				return nil
			})
			require.NoError(t, err)
			_, err = dec.Run()
			require.NoError(t, err)
			require.NoError(t, dec.Close())
			require.Len(t, images, 5)
			assert.Equal(t, testWidth, images[0].Width)
		})
	}
}
