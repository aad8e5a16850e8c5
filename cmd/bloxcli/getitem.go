package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/blox/blox"
)

type getitemFlags struct {
	Start  int `subcmd:"start,0,'first element index'"`
	NItems int `subcmd:"nitems,1,'number of elements'"`
}

func runGetItem(ctx context.Context, values interface{}, args []string) error {
	gf := values.(*getitemFlags)
	rd, _, cleanup, err := openFileOrURL(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup(ctx)

	in, err := ioutil.ReadAll(rd)
	if err != nil {
		return fmt.Errorf("bloxcli: reading input: %w", err)
	}

	h, err := blox.InspectHeader(in)
	if err != nil {
		return fmt.Errorf("bloxcli: %w", err)
	}
	ts := int(h.TypeSize)
	if ts == 0 {
		ts = len(in) - h.HeaderLen()
	}

	dst := make([]byte, gf.NItems*ts)
	bctx := blox.NewContext(blox.TypeSize(uint8(ts)))
	if err := bctx.GetItem(in, gf.Start, gf.NItems, dst); err != nil {
		return fmt.Errorf("bloxcli: getitem: %w", err)
	}

	_, err = os.Stdout.Write(dst)
	return err
}
