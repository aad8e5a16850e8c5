package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"

	"cloudeng.io/cmdutil"
	"cloudeng.io/errors"
	"github.com/blox/blox"
	"golang.org/x/crypto/ssh/terminal"
)

type decompressFlags struct {
	Output   string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
	NThreads int    `subcmd:"nthreads,4,'worker pool width'"`
	Progress bool   `subcmd:"progress,true,'display a progress bar'"`
}

func runDecompress(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmdutil.HandleSignals(cancel, os.Interrupt)
	df := values.(*decompressFlags)

	if len(args) > 1 {
		return fmt.Errorf("bloxcli: decompress takes at most one input argument")
	}

	var in []byte
	if len(args) == 0 {
		b, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("bloxcli: reading stdin: %w", err)
		}
		in = b
	} else {
		rd, _, cleanup, err := openFileOrURL(ctx, args[0])
		if err != nil {
			return err
		}
		defer cleanup(ctx)
		in, err = ioutil.ReadAll(rd)
		if err != nil {
			return fmt.Errorf("bloxcli: reading input: %w", err)
		}
	}

	h, err := blox.InspectHeader(in)
	if err != nil {
		return fmt.Errorf("bloxcli: %w", err)
	}
	dst := make([]byte, h.NBytes)

	wr, cleanup, err := createFile(ctx, df.Output)
	if err != nil {
		return err
	}

	var progressCh chan blockProgress
	isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
	progressWr := os.Stdout
	if df.Progress && (len(df.Output) > 0 || !isTTY) {
		progressCh = make(chan blockProgress, df.NThreads)
		if !isTTY {
			progressWr = os.Stderr
		}
	}

	opts := []blox.Option{blox.NThreads(df.NThreads)}
	if progressCh != nil {
		opts = append(opts, blox.Postfilter(&progressCallback{ch: progressCh}))
	}
	bctx := blox.NewContext(opts...)

	var barDone chan struct{}
	if progressCh != nil {
		barDone = make(chan struct{})
		go func() {
			renderProgressBar(ctx, progressWr, progressCh, int64(h.NBytes))
			close(barDone)
		}()
	}

	err = bctx.Decompress(in, dst)
	if progressCh != nil {
		close(progressCh)
		<-barDone
	}
	if err != nil {
		return fmt.Errorf("bloxcli: decompress: %w", err)
	}

	outErrs := &errors.M{}
	_, err = wr.Write(dst)
	outErrs.Append(err)
	outErrs.Append(cleanup(ctx))
	return outErrs.Err()
}
