// Command bloxcli is a thin wrapper over the blox package: compress,
// decompress and getitem subcommands operating on local files, S3 objects
// or HTTP(S) URLs, grounded on cosnicolaou-pbzip2/cmd/pbzip2's file I/O and
// progress-bar conventions.
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/schollz/progressbar/v2"
)

func openFileOrURL(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if strings.HasPrefix(name, "http") {
		resp, err := http.Get(name)
		if err != nil {
			return nil, 0, nil, err
		}
		return resp.Body, resp.ContentLength, func(context.Context) error {
			return resp.Body.Close()
		}, nil
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

func createFile(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	if len(name) == 0 {
		return os.Stdout, func(context.Context) error { return nil }, nil
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

// blockProgress mirrors pbzip2.Progress: one report per block the core
// library finishes compressing or decompressing.
type blockProgress struct {
	Block int
	Size  int
}

// progressCallback implements filter.Callback and forwards one
// blockProgress per invocation, matching the shape of a pre/postfilter
// callback the core dispatches once per block. It passes the block through
// unchanged.
type progressCallback struct {
	ch chan<- blockProgress
}

func (p *progressCallback) Run(blockInput, blockOutput []byte, blockIndex, chunkIndex, tid int, scratch []byte) error {
	copy(blockOutput, blockInput)
	p.ch <- blockProgress{Block: blockIndex, Size: len(blockInput)}
	return nil
}

func renderProgressBar(ctx context.Context, wr io.Writer, ch <-chan blockProgress, size int64) {
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetBytes64(size),
		progressbar.OptionSetWriter(wr),
		progressbar.OptionSetPredictTime(true))
	bar.RenderBlank()
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				io.WriteString(wr, "\n")
				return
			}
			bar.Add(p.Size)
		case <-ctx.Done():
			return
		}
	}
}
