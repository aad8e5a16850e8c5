package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"cloudeng.io/cmdutil"
	"cloudeng.io/errors"
	"github.com/blox/blox"
	"github.com/blox/blox/codec"
	"golang.org/x/crypto/ssh/terminal"
)

var codecNames = map[string]codec.ID{
	"lz-lite":      codec.LZLite,
	"lz-fast":      codec.LZFast,
	"lz-hc":        codec.LZHC,
	"deflate":      codec.Deflate,
	"dict-entropy": codec.DictEntrop,
}

var shuffleNames = map[string]blox.Shuffle{
	"none": blox.NoShuffle,
	"byte": blox.ByteShuffle,
	"bit":  blox.BitShuffle,
}

type compressFlags struct {
	Output    string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
	TypeSize  int    `subcmd:"typesize,1,'nominal element width'"`
	CLevel    int    `subcmd:"clevel,5,'compression level [0,9]; 0 forces a raw copy'"`
	Codec     string `subcmd:"codec,lz-lite,'codec: lz-lite, lz-fast, lz-hc, deflate, dict-entropy'"`
	Shuffle   string `subcmd:"shuffle,byte,'shuffle filter: none, byte, bit'"`
	Delta     bool   `subcmd:"delta,false,'enable the delta filter'"`
	BlockSize uint32 `subcmd:"blocksize,0,'block size override, 0 for automatic'"`
	NThreads  int    `subcmd:"nthreads,4,'worker pool width'"`
	UseDict   bool   `subcmd:"use-dict,false,'train and embed a dictionary when the codec supports it'"`
	Progress  bool   `subcmd:"progress,true,'display a progress bar'"`
}

func runCompress(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmdutil.HandleSignals(cancel, os.Interrupt)
	cf := values.(*compressFlags)

	if len(args) > 1 {
		return fmt.Errorf("bloxcli: compress takes at most one input argument")
	}

	codecID, ok := codecNames[cf.Codec]
	if !ok {
		return fmt.Errorf("bloxcli: unknown codec %q", cf.Codec)
	}
	shuffle, ok := shuffleNames[cf.Shuffle]
	if !ok {
		return fmt.Errorf("bloxcli: unknown shuffle %q", cf.Shuffle)
	}

	var (
		rd   io.Reader
		size int64
	)
	if len(args) == 0 {
		rd = os.Stdin
	} else {
		r, n, cleanup, err := openFileOrURL(ctx, args[0])
		if err != nil {
			return err
		}
		defer cleanup(ctx)
		rd, size = r, n
	}
	src, err := ioutil.ReadAll(rd)
	if err != nil {
		return fmt.Errorf("bloxcli: reading input: %w", err)
	}
	if size <= 0 {
		size = int64(len(src))
	}

	wr, cleanup, err := createFile(ctx, cf.Output)
	if err != nil {
		return err
	}

	var progressCh chan blockProgress
	isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
	progressWr := os.Stdout
	if cf.Progress && (len(cf.Output) > 0 || !isTTY) {
		progressCh = make(chan blockProgress, cf.NThreads)
		if !isTTY {
			progressWr = os.Stderr
		}
	}

	if cf.TypeSize <= 0 || cf.TypeSize > 255 {
		return fmt.Errorf("bloxcli: typesize %d out of [1,255]", cf.TypeSize)
	}
	opts := []blox.Option{
		blox.TypeSize(uint8(cf.TypeSize)),
		blox.CLevel(cf.CLevel),
		blox.Codec(codecID),
		blox.DoShuffle(shuffle),
		blox.Delta(cf.Delta),
		blox.BlockSize(cf.BlockSize),
		blox.NThreads(cf.NThreads),
		blox.UseDict(cf.UseDict),
	}
	if progressCh != nil {
		opts = append(opts, blox.Prefilter(&progressCallback{ch: progressCh}))
	}
	bctx := blox.NewContext(opts...)

	var barWg chan struct{}
	if progressCh != nil {
		barWg = make(chan struct{})
		go func() {
			renderProgressBar(ctx, progressWr, progressCh, size)
			close(barWg)
		}()
	}

	out, err := bctx.Compress(src)
	if progressCh != nil {
		close(progressCh)
		<-barWg
	}
	if err != nil {
		return fmt.Errorf("bloxcli: compress: %w", err)
	}

	outErrs := &errors.M{}
	_, err = wr.Write(out)
	outErrs.Append(err)
	outErrs.Append(cleanup(ctx))
	return outErrs.Err()
}
