package main

import (
	"bytes"
	"flag"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wilberth/SledBalls/internal/triallog"
)

func writeLog(t *testing.T, dir string, nBlocks int) string {
	t.Helper()
	var buf bytes.Buffer
	l := triallog.NewLogger(&buf)
	for b := range nBlocks {
		require.NoError(t, l.Open())
		for i := range 10 {
			x := 0.01 * float64(i)
			require.NoError(t, l.Record(float64(i)/60, []r3.Vec{
				{X: x, Y: float64(b) * 0.1},
				{X: -x, Y: x, Z: 0.2},
			}))
		}
		require.NoError(t, l.Close())
	}
	path := filepath.Join(dir, "s01_traject.json")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func parseArgs(args ...string) (options, error) {
	fs := flag.NewFlagSet("trajplot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return parseOptions(fs, args)
}

func TestParseOptions(t *testing.T) {
	o, err := parseArgs("logs/s01_traject.json")
	require.NoError(t, err)
	assert.Equal(t, "logs/s01_traject.json", o.in)
	assert.Equal(t, "logs/s01_traject", o.out)
	assert.Equal(t, "png", o.format)
	assert.Equal(t, -1, o.block)

	_, err = parseArgs()
	assert.Error(t, err)
	_, err = parseArgs("-format", "svg", "x.json")
	assert.Error(t, err)

	o, err = parseArgs("-version")
	require.NoError(t, err)
	assert.True(t, o.version)
}

func TestBallPaths(t *testing.T) {
	block := triallog.Block{
		{Elapsed: 0, Positions: []r3.Vec{{X: 1, Y: 2}, {X: 3, Y: 4}}},
		{Elapsed: 0.1, Positions: []r3.Vec{{X: 5}}},
		{Elapsed: 0.2, Positions: []r3.Vec{{X: 1.5, Y: 2.5}, {X: 3.5, Y: 4.5}}},
	}
	paths := ballPaths(block)
	require.Len(t, paths, 2)
	assert.Len(t, paths[0], 2, "short frame skipped")
	assert.Equal(t, 4.5, paths[1][1].Y)
	assert.Nil(t, ballPaths(nil))
}

func TestSelectBlocks(t *testing.T) {
	blocks := make([]triallog.Block, 3)
	got, first, err := selectBlocks(blocks, -1)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Zero(t, first)

	got, first, err = selectBlocks(blocks, 2)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, first)

	_, _, err = selectBlocks(blocks, 3)
	assert.Error(t, err)
}

func TestRun_PNG(t *testing.T) {
	dir := t.TempDir()
	in := writeLog(t, dir, 2)

	written, err := run(options{in: in, out: filepath.Join(dir, "out"), format: "png", block: -1})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "out_block000.png"),
		filepath.Join(dir, "out_block001.png"),
	}, written)

	f, err := os.Open(written[1])
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestRun_HTMLSingleBlock(t *testing.T) {
	dir := t.TempDir()
	in := writeLog(t, dir, 3)

	written, err := run(options{in: in, out: filepath.Join(dir, "plot"), format: "html", block: 1})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "plot.html")}, written)

	data, err := os.ReadFile(written[0])
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "Trial block 1")
	assert.NotContains(t, html, "Trial block 0")
	assert.Equal(t, 1, strings.Count(html, "Trial block"))
}

func TestRun_MissingFile(t *testing.T) {
	_, err := run(options{in: filepath.Join(t.TempDir(), "nope.json"), format: "png", block: -1})
	assert.Error(t, err)
}

func TestGenerateColors(t *testing.T) {
	colors := generateColors(4)
	require.Len(t, colors, 4)
	assert.NotEqual(t, colors[0], colors[1])
	assert.Empty(t, generateColors(0))
}
